// Package gen turns a wrapper header into Go bindings.
//
// A run scans the headers reachable from the wrapper with the configured
// include paths and feature defines, builds the binding set, and writes:
//
//   - zva_types_<goos>_<goarch>.go per enabled target, produced by the
//     external generator (go tool cgo -godefs) from an emitted input file
//   - zva_funcs.go with cgo wrappers for every function
//   - zva_features.go recording the feature set
//   - the JSON manifest listing every symbol
//
// Symbols owned by a feature go to separate files carrying the feature's
// build tag, so consuming code compiled without the tag does not see them.
//
// Output is staged and moved into place only after every target succeeded.
// A failed run leaves the output directory untouched.
package gen
