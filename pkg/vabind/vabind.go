package vabind

import (
	"context"
	"io"
	"path/filepath"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/ci"
	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/internal/gen"
	"github.com/cros-libva/libva-go/internal/refcheck"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// Type aliases for the result types of the internal packages.
type (
	Config     = config.Config
	FeatureSet = config.FeatureSet
	Set        = bindings.Set
	Symbol     = bindings.Symbol
	Kind       = bindings.Kind
	Manifest   = bindings.Manifest
	Generator  = gen.Generator
	Request    = gen.Request
	Result     = gen.Result
	Report     = refcheck.Report
	Runner     = ci.Runner
	Summary    = ci.Summary
)

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) ([]byte, error)

// Godefs calls f.
func (f GeneratorFunc) Godefs(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Options select the descriptor and the feature set of a project.
type Options struct {
	// ConfigPath defaults to vabind.yaml in the working directory.
	ConfigPath string
	// Features override the enabled flags of the descriptor by name.
	Features map[string]bool
	Logger   logging.Logger
	// Jobs bounds concurrent generator invocations; zero means GOMAXPROCS.
	Jobs int
}

// Project is a loaded and validated build descriptor with its feature set.
type Project struct {
	Config   *Config
	Features FeatureSet

	log  logging.Logger
	jobs int
}

// Open loads the descriptor named by opts.
func Open(opts Options) (*Project, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}

// New wraps an already decoded descriptor. opts.ConfigPath is ignored.
func New(cfg *Config, opts Options) (*Project, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fs, err := cfg.FeatureSet(opts.Features)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logging.New(nil)
	}
	return &Project{Config: cfg, Features: fs, log: log, jobs: opts.Jobs}, nil
}

// Scan parses the wrapper header and returns the binding set without
// invoking the external generator.
func (p *Project) Scan() (*Set, error) {
	return gen.BuildSet(p.Config, p.Features)
}

// Generate writes the bindings. A nil generator runs `go tool cgo -godefs`.
func (p *Project) Generate(ctx context.Context, generator Generator) (*Result, error) {
	res, err := gen.Generate(ctx, gen.Options{
		Config:    p.Config,
		Features:  p.Features,
		Generator: generator,
		Logger:    p.log,
		Jobs:      p.jobs,
	})
	if err != nil {
		return nil, RemapError(err)
	}
	return res, nil
}

// Manifest reads the manifest of the last generation. It returns
// ErrNotBuilt when nothing was generated yet.
func (p *Project) Manifest() (*Manifest, error) {
	out := p.Config.Resolve(p.Config.Output.Dir)
	m, err := bindings.ReadManifest(filepath.Join(out, p.Config.Output.Manifest))
	return m, RemapError(err)
}

// Check verifies the configured consumers against the generated bindings.
// Consumers are loaded with the feature build tags plus the libva driver tag.
func (p *Project) Check(ctx context.Context) (*Report, error) {
	report, err := refcheck.CheckConfig(ctx, p.Config, p.Features, []string{ci.DriverTag}, nil, p.log)
	return report, RemapError(err)
}

// Pipeline returns the CI pipeline of the project. A nil runner executes
// commands with os/exec.
func (p *Project) Pipeline(runner Runner, out io.Writer) *ci.Pipeline {
	return &ci.Pipeline{
		Config:   p.Config,
		Features: p.Features,
		Runner:   runner,
		Logger:   p.log,
		Output:   out,
	}
}
