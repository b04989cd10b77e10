package ci

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/cros-libva/libva-go/internal/gen"
	"github.com/cros-libva/libva-go/internal/refcheck"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

func (p *Pipeline) generate(ctx context.Context, logger logging.Logger) error {
	cfg := *p.Config
	if p.includeDir != "" {
		cfg.IncludePaths = append(append([]string(nil), cfg.IncludePaths...), p.includeDir)
	}
	generator := p.Generator
	if generator == nil {
		generator = gen.CgoGenerator{Env: p.env}
	}
	res, err := gen.Generate(ctx, gen.Options{
		Config:    &cfg,
		Features:  p.Features,
		Generator: generator,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "bindings generated", "symbols", res.Set.Len(), "files", len(res.Files))
	return nil
}

func (p *Pipeline) refcheck(ctx context.Context, logger logging.Logger) error {
	report, err := refcheck.CheckConfig(ctx, p.Config, p.Features, []string{DriverTag}, p.env, logger)
	if err != nil {
		return err
	}
	logger.Info(ctx, "consumers checked", "importers", len(report.Importers), "refs", len(report.Refs))
	return nil
}

func (p *Pipeline) format(ctx context.Context, logger logging.Logger) error {
	files, err := Unformatted(p.Config.Dir())
	if err != nil {
		return err
	}
	if len(files) > 0 {
		return fmt.Errorf("%d file(s) need formatting:\n%s", len(files), strings.Join(files, "\n"))
	}
	logger.Debug(ctx, "sources formatted")
	return nil
}

var formatOptions = &imports.Options{Comments: true, TabIndent: true, TabWidth: 8, FormatOnly: true}

// Unformatted walks the Go sources under root, skipping the directories the
// go command ignores, and returns the paths, relative to root, that goimports
// would change.
func Unformatted(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		src, err := os.ReadFile(path) // #nosec G304 -- walking the module tree
		if err != nil {
			return err
		}
		formatted, err := imports.Process(path, src, formatOptions)
		if err != nil {
			return fmt.Errorf("format %s: %w", path, err)
		}
		if !bytes.Equal(src, formatted) {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	return out, err
}
