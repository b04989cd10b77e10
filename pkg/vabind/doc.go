// Package vabind generates and checks the cgo bindings of libva.
//
// A Project is opened from a vabind.yaml descriptor. Generate scans the
// wrapper header, runs `go tool cgo -godefs` for every enabled target and
// replaces the generated package atomically; Check verifies that consuming
// packages only reference generated names; Pipeline runs the CI health check
// that builds the pinned libva release before building the consumers.
//
// The vabindgen command is a thin layer over this package.
package vabind
