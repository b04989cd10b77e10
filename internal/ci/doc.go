// Package ci runs the repository health check: install the native dev
// package, fetch and build the pinned libva, generate bindings, build with
// every feature, vet, check consumer references, test and check formatting.
//
// Steps run in order and the first failure stops the pipeline; later steps
// are reported as skipped. After the libva step the install locations are
// exported to every later step through PKG_CONFIG_PATH, CGO_CFLAGS,
// CGO_LDFLAGS, LD_LIBRARY_PATH and the configured include and lib variables.
package ci
