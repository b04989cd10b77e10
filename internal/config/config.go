// Package config loads the vabind build descriptor: which wrapper header to
// scan, where the native headers live, which optional features are active and
// which targets get bindings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the descriptor looked up when no --config flag is given.
const DefaultPath = "vabind.yaml"

// Config is the complete build descriptor.
type Config struct {
	WrapperHeader string        `yaml:"wrapper_header"`
	IncludePaths  []string      `yaml:"include_paths,omitempty"`
	HeaderFilter  []string      `yaml:"header_filter,omitempty"`
	Defines       []string      `yaml:"defines,omitempty"`
	Features      []Feature     `yaml:"features,omitempty"`
	Targets       []Target      `yaml:"targets,omitempty"`
	Output        OutputConfig  `yaml:"output"`
	Visibility    []string      `yaml:"visibility,omitempty"`
	Consumers     []string      `yaml:"consumers,omitempty"`
	Library       LibraryConfig `yaml:"library"`
	CI            []StepConfig  `yaml:"ci,omitempty"`

	// dir is the directory holding the descriptor; relative paths resolve
	// against it.
	dir string
}

// Feature is a named boolean gating an optional native header.
type Feature struct {
	Name     string   `yaml:"name"`
	Define   string   `yaml:"define"`            // macro tested by the wrapper header
	BuildTag string   `yaml:"build_tag"`         // Go build tag tested by consuming code
	Enabled  bool     `yaml:"enabled"`           // whether the header is part of this build
	Headers  []string `yaml:"headers,omitempty"` // headers owned by the feature
}

// Target is one GOOS/GOARCH pair bindings are produced for.
type Target struct {
	GOOS    string `yaml:"goos"`
	GOARCH  string `yaml:"goarch"`
	Enabled *bool  `yaml:"enabled,omitempty"` // nil means enabled
	// CC overrides the C compiler used for the target, e.g. a cross compiler.
	CC string `yaml:"cc,omitempty"`
}

// OutputConfig controls where generated files land.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Package  string `yaml:"package"`
	Manifest string `yaml:"manifest,omitempty"`
}

// LibraryConfig pins the native library built by the CI pipeline.
type LibraryConfig struct {
	Name          string   `yaml:"name"`
	Version       string   `yaml:"version"`
	Repository    string   `yaml:"repository"`
	PkgConfig     []string `yaml:"pkg_config,omitempty"`
	IncludeDirEnv string   `yaml:"include_dir_env"`
	LibDirEnv     string   `yaml:"lib_dir_env"`
}

// StepConfig describes one CI pipeline step.
type StepConfig struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind,omitempty"` // exec (default), libva, generate, refcheck, format
	Command []string          `yaml:"command,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Load reads and decodes the descriptor at path, expands environment
// references and applies defaults. It does not validate; call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg.dir = abs
	return cfg, nil
}

// Parse decodes descriptor bytes. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.expandEnv()
	cfg.setDefaults()
	return &cfg, nil
}

// Dir returns the directory relative paths resolve against.
func (c *Config) Dir() string {
	if c.dir == "" {
		return "."
	}
	return c.dir
}

// SetDir overrides the base directory; used when the descriptor is built in
// memory.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

// Resolve makes p absolute relative to the descriptor directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// WrapperPath is the resolved wrapper header path.
func (c *Config) WrapperPath() string {
	return c.Resolve(c.WrapperHeader)
}

// ResolvedIncludePaths returns the include paths resolved against Dir, with
// empty entries (unset environment variables) removed.
func (c *Config) ResolvedIncludePaths() []string {
	out := make([]string, 0, len(c.IncludePaths))
	for _, p := range c.IncludePaths {
		if p == "" {
			continue
		}
		out = append(out, c.Resolve(p))
	}
	return out
}

// InSurface reports whether the header at path belongs to the binding
// surface: its base name matches a header_filter pattern or a feature owns it.
func (c *Config) InSurface(path string) bool {
	base := filepath.Base(path)
	for _, pat := range c.HeaderFilter {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	for _, f := range c.Features {
		for _, h := range f.Headers {
			if filepath.ToSlash(path) == h || strings.HasSuffix(filepath.ToSlash(path), "/"+h) {
				return true
			}
		}
	}
	return false
}

// EnabledTargets lists targets with Enabled unset or true, in declaration
// order.
func (c *Config) EnabledTargets() []Target {
	var out []Target
	for _, t := range c.Targets {
		if t.IsEnabled() {
			out = append(out, t)
		}
	}
	return out
}

// IsEnabled reports whether bindings are produced for t.
func (t Target) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// String renders t as goos_goarch.
func (t Target) String() string {
	return t.GOOS + "_" + t.GOARCH
}

func (c *Config) expandEnv() {
	c.WrapperHeader = os.ExpandEnv(c.WrapperHeader)
	for i, p := range c.IncludePaths {
		c.IncludePaths[i] = os.ExpandEnv(p)
	}
	c.Output.Dir = os.ExpandEnv(c.Output.Dir)
	for i := range c.CI {
		c.CI[i].Dir = os.ExpandEnv(c.CI[i].Dir)
	}
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	if len(c.HeaderFilter) == 0 {
		c.HeaderFilter = []string{"va*.h"}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "pkg/va/internal/raw"
	}
	if c.Output.Package == "" {
		c.Output.Package = filepath.Base(c.Output.Dir)
	}
	if c.Output.Manifest == "" {
		c.Output.Manifest = "vabind.json"
	}
	if len(c.Targets) == 0 {
		c.Targets = []Target{{GOOS: "linux", GOARCH: "amd64"}}
	}
	if c.Library.Name == "" {
		c.Library.Name = "libva"
	}
	if c.Library.Repository == "" {
		c.Library.Repository = "https://github.com/intel/libva.git"
	}
	if c.Library.Version == "" {
		c.Library.Version = "2.22.0"
	}
	if len(c.Library.PkgConfig) == 0 {
		c.Library.PkgConfig = []string{"libva", "libva-drm"}
	}
	if c.Library.IncludeDirEnv == "" {
		c.Library.IncludeDirEnv = "LIBVA_INCLUDE_DIR"
	}
	if c.Library.LibDirEnv == "" {
		c.Library.LibDirEnv = "LIBVA_LIB_DIR"
	}
	for i := range c.Features {
		f := &c.Features[i]
		if f.BuildTag == "" {
			f.BuildTag = f.Name
		}
	}
	if len(c.CI) == 0 {
		c.CI = DefaultSteps()
	}
}

// DefaultSteps mirrors the health check run on pushes and pull requests:
// native dev package, pinned libva from source, bindings, full-feature build,
// lint, tests and formatting.
func DefaultSteps() []StepConfig {
	return []StepConfig{
		{Name: "install-deps", Command: []string{"sudo", "apt-get", "install", "-y", "libdrm-dev"}},
		{Name: "build-libva", Kind: "libva"},
		{Name: "generate", Kind: "generate"},
		{Name: "build", Command: []string{"go", "build", "-tags", "{{tags}}", "./..."}},
		{Name: "vet", Command: []string{"go", "vet", "-tags", "{{tags}}", "./..."}},
		{Name: "refcheck", Kind: "refcheck"},
		{Name: "test", Command: []string{"go", "test", "-tags", "{{tags}}", "./..."}},
		{Name: "format", Kind: "format"},
	}
}
