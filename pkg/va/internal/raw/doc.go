// Package raw holds the libva bindings produced by vabindgen from
// lib/libva-wrapper.h. Everything except this file is generated; run
// `vabindgen generate` to refresh it and `vabindgen check` to verify the
// symbols package va uses.
//
// The package is internal to va. Callers use va's typed API instead.
package raw
