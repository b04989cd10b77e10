package gen

import (
	"fmt"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/internal/cpp"
)

// Predefines are the compiler macros the header scan assumes. They describe
// the GNU C11 dialect the external generator compiles with.
var Predefines = []string{
	"__STDC__=1",
	"__STDC_VERSION__=201112L",
	"__GNUC__=4",
	"__linux__=1",
}

// Defines returns every macro the header scan sees: predefines, then the
// generator defines.
func Defines(cfg *config.Config, fs config.FeatureSet) []string {
	return append(append([]string(nil), Predefines...), GeneratorDefines(cfg, fs)...)
}

// GeneratorDefines returns the macros passed to the external generator:
// configured defines, then enabled feature defines. The real compiler brings
// its own builtins, so Predefines are not among them.
func GeneratorDefines(cfg *config.Config, fs config.FeatureSet) []string {
	out := append([]string(nil), cfg.Defines...)
	return append(out, fs.Defines()...)
}

// Scan preprocesses the wrapper header. Unresolved includes fail with a
// *cpp.MissingIncludeError before anything is written.
func Scan(cfg *config.Config, fs config.FeatureSet) (*cpp.Result, error) {
	res, err := cpp.Process(cfg.WrapperPath(), cpp.Options{
		IncludePaths: cfg.ResolvedIncludePaths(),
		Defines:      Defines(cfg, fs),
		Surface:      cfg.InSurface,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cfg.WrapperHeader, err)
	}
	return res, nil
}

// BuildSet scans the wrapper header and returns its binding set.
func BuildSet(cfg *config.Config, fs config.FeatureSet) (*bindings.Set, error) {
	res, err := Scan(cfg, fs)
	if err != nil {
		return nil, err
	}
	return bindings.Build(res, fs)
}
