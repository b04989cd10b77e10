// Package bindings holds the binding set: the symbols found in the libva
// surface headers, their generated Go names and the manifest written next to
// the generated files.
package bindings
