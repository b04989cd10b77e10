package refcheck

import (
	"context"
	"path/filepath"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/internal/gen"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// CheckConfig checks the consumers named by cfg against the manifest of the
// last generation. extraTags are added to the feature build tags.
func CheckConfig(ctx context.Context, cfg *config.Config, fs config.FeatureSet, extraTags, env []string, logger logging.Logger) (*Report, error) {
	outDir := cfg.Resolve(cfg.Output.Dir)
	m, err := bindings.ReadManifest(filepath.Join(outDir, cfg.Output.Manifest))
	if err != nil {
		return nil, err
	}
	set, err := m.Set()
	if err != nil {
		return nil, err
	}
	genPath, err := ImportPath(cfg.Dir(), outDir)
	if err != nil {
		return nil, err
	}
	return Check(ctx, set, Options{
		Dir:        cfg.Dir(),
		Patterns:   cfg.Consumers,
		Tags:       append(fs.BuildTags(), extraTags...),
		Env:        env,
		Generated:  genPath,
		Visibility: cfg.Visibility,
		Extra:      gen.GeneratedNames(fs),
		Logger:     logger,
	})
}
