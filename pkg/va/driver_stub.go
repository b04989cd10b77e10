//go:build !libva || !cgo

package va

import "github.com/cros-libva/libva-go/pkg/vabind/logging"

// OpenDRM reports ErrNotBuilt: the package was compiled without the libva
// driver.
func OpenDRM(path string, log logging.Logger) (*Display, error) {
	return nil, ErrNotBuilt
}
