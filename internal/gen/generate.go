package gen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// FeaturesFile is the generated file recording the feature set.
const FeaturesFile = "zva_features.go"

// Options configure a generation run.
type Options struct {
	Config   *config.Config
	Features config.FeatureSet
	// Generator defaults to CgoGenerator.
	Generator Generator
	Logger    logging.Logger
	// Jobs bounds concurrent target invocations; zero means GOMAXPROCS.
	Jobs int
}

// Result describes a successful run.
type Result struct {
	Set      *bindings.Set
	Manifest *bindings.Manifest
	// Files are the written file names relative to the output directory.
	Files []string
	Dir   string
}

// Generate scans the wrapper header and writes the bindings for every enabled
// target. It writes nothing unless every step succeeds.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("gen: nil config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(nil)
	}
	generator := opts.Generator
	if generator == nil {
		generator = CgoGenerator{}
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	targets := cfg.EnabledTargets()
	if len(targets) == 0 {
		return nil, errors.New("gen: no target enabled")
	}

	fs := opts.Features
	set, err := BuildSet(cfg, fs)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "scanned wrapper header",
		"wrapper", cfg.WrapperHeader,
		"symbols", set.Len(),
		"features", fs.Key(),
	)

	wrapper := cfg.WrapperPath()
	outDir := cfg.Resolve(cfg.Output.Dir)
	rel, err := filepath.Rel(outDir, filepath.Dir(wrapper))
	if err != nil {
		return nil, fmt.Errorf("locate wrapper from output dir: %w", err)
	}
	pkg := cfg.Output.Package
	pre := cgoPreamble{
		wrapperDir: filepath.ToSlash(rel),
		wrapper:    filepath.Base(wrapper),
		pkgConfig:  cfg.Library.PkgConfig,
		defines:    cfg.Defines,
	}
	mapper := typeMapper{set: set}
	groups := groupsOf(set, fs)

	// Render everything that does not need the external generator first, so
	// unsupported signatures fail before any staging.
	static := map[string][]byte{}
	for _, g := range groups {
		src, err := funcsSource(pkg, pre, g, mapper)
		if err != nil {
			return nil, err
		}
		if src == nil {
			continue
		}
		if static[g.funcsFile()], err = format(g.funcsFile(), src); err != nil {
			return nil, err
		}
	}
	if static[FeaturesFile], err = format(FeaturesFile, featuresSource(pkg, fs)); err != nil {
		return nil, err
	}
	manifest := bindings.NewManifest(set, cfg.Library.Name, filepath.Base(wrapper), pkg, featureMap(fs), targetNames(targets))
	if static[cfg.Output.Manifest], err = manifest.Marshal(); err != nil {
		return nil, err
	}

	work, err := os.MkdirTemp("", "vabind-work-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	st, err := newStage(outDir)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			st.discard()
		}
	}()
	for name, data := range static {
		if err := st.write(name, data); err != nil {
			return nil, err
		}
	}

	cflags := CFlags(filepath.Dir(wrapper), cfg.ResolvedIncludePaths(), GeneratorDefines(cfg, fs))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for _, t := range targets {
		t := t
		eg.Go(func() error {
			return generateTarget(egctx, targetJob{
				target:    t,
				work:      filepath.Join(work, t.String()),
				pkg:       pkg,
				wrapper:   filepath.Base(wrapper),
				cflags:    cflags,
				groups:    groups,
				set:       set,
				generator: generator,
				stage:     st,
				logger:    logger.With("target", t.String()),
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	files, err := st.commit(outDir, cfg.Output.Manifest)
	committed = true
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "bindings written", "dir", outDir, "files", len(files))
	return &Result{Set: set, Manifest: manifest, Files: files, Dir: outDir}, nil
}

type targetJob struct {
	target    config.Target
	work      string
	pkg       string
	wrapper   string
	cflags    []string
	groups    []group
	set       *bindings.Set
	generator Generator
	stage     *stage
	logger    logging.Logger
}

func generateTarget(ctx context.Context, job targetJob) error {
	if err := os.MkdirAll(job.work, 0o755); err != nil {
		return err
	}
	for _, g := range job.groups {
		if len(g.kinds(bindings.KindStruct, bindings.KindUnion, bindings.KindEnum, bindings.KindTypedef, bindings.KindOpaque, bindings.KindConstant)) == 0 {
			continue
		}
		input := g.prefix() + "godefs.go"
		nested := g.nestedTypes(job.set)
		if err := os.WriteFile(filepath.Join(job.work, input), godefsInput(job.pkg, job.wrapper, g, nested), 0o600); err != nil {
			return fmt.Errorf("write godefs input: %w", err)
		}
		raw, err := job.generator.Godefs(ctx, Request{
			Target: job.target,
			Dir:    job.work,
			Input:  input,
			CFlags: job.cflags,
		})
		if err != nil {
			var genErr *GeneratorError
			if errors.As(err, &genErr) {
				return err
			}
			return &GeneratorError{Target: job.target.String(), Err: err}
		}

		name := g.typesFile(job.target)
		src, err := cleanGodefs(name, raw, g.constraint(), job.set, nested)
		if err != nil {
			return err
		}
		if err := job.stage.write(name, src); err != nil {
			return err
		}
		job.logger.Debug(ctx, "generated types", "file", name, "symbols", len(g.symbols))
	}
	return nil
}
