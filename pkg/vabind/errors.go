package vabind

import (
	"errors"
	"fmt"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/cdecl"
	"github.com/cros-libva/libva-go/internal/ci"
	"github.com/cros-libva/libva-go/internal/cpp"
	"github.com/cros-libva/libva-go/internal/gen"
	"github.com/cros-libva/libva-go/internal/refcheck"
)

// ErrNotBuilt reports that the bindings have not been generated yet.
var ErrNotBuilt = errors.New("libva-go/vabind: bindings not generated")

// Error types returned by the generator, the consumer check and the CI
// pipeline. Match them with errors.As.
type (
	MissingIncludeError  = cpp.MissingIncludeError
	UnsupportedError     = cdecl.UnsupportedError
	DuplicateSymbolError = bindings.DuplicateSymbolError
	GeneratorError       = gen.GeneratorError
	MissingSymbolsError  = refcheck.MissingSymbolsError
	VisibilityError      = refcheck.VisibilityError
	StepError            = ci.StepError
)

// RemapError converts internal sentinel errors to the public ones. Typed
// errors are aliases and pass through unchanged.
func RemapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bindings.ErrNotBuilt) && !errors.Is(err, ErrNotBuilt) {
		return fmt.Errorf("%w: %w", ErrNotBuilt, err)
	}
	return err
}
