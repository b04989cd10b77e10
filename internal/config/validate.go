package config

import (
	"errors"
	"fmt"
	"go/token"
	"path/filepath"
	"regexp"
)

var macroName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the descriptor and returns the first failure found.
func (c *Config) Validate() error {
	if c.WrapperHeader == "" {
		return errors.New("wrapper_header is required")
	}
	for _, pat := range c.HeaderFilter {
		if _, err := filepath.Match(pat, ""); err != nil {
			return fmt.Errorf("header_filter %q: %w", pat, err)
		}
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := c.validateFeatures(); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if err := c.validateTargets(); err != nil {
		return fmt.Errorf("targets: %w", err)
	}
	for i, s := range c.CI {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("ci step %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks output settings.
func (o *OutputConfig) Validate() error {
	if !token.IsIdentifier(o.Package) {
		return fmt.Errorf("package %q is not a valid Go identifier", o.Package)
	}
	return nil
}

// Validate checks a single pipeline step.
func (s *StepConfig) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	switch s.Kind {
	case "", "exec":
		if len(s.Command) == 0 {
			return fmt.Errorf("step %q: command is required", s.Name)
		}
	case "libva", "generate", "refcheck", "format":
	default:
		return fmt.Errorf("step %q: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}

func (c *Config) validateFeatures() error {
	names := map[string]bool{}
	defines := map[string]bool{}
	for _, f := range c.Features {
		if f.Name == "" {
			return errors.New("feature name is required")
		}
		if !macroName.MatchString(f.Name) {
			return fmt.Errorf("feature name %q must be an identifier", f.Name)
		}
		if names[f.Name] {
			return fmt.Errorf("duplicate feature %q", f.Name)
		}
		names[f.Name] = true
		if !macroName.MatchString(f.Define) {
			return fmt.Errorf("feature %q: define %q is not a macro name", f.Name, f.Define)
		}
		if defines[f.Define] {
			return fmt.Errorf("feature %q: define %q used twice", f.Name, f.Define)
		}
		defines[f.Define] = true
		if !macroName.MatchString(f.BuildTag) {
			return fmt.Errorf("feature %q: build_tag %q is invalid", f.Name, f.BuildTag)
		}
	}
	return nil
}

func (c *Config) validateTargets() error {
	seen := map[string]bool{}
	for _, t := range c.Targets {
		if t.GOOS == "" || t.GOARCH == "" {
			return fmt.Errorf("target %q: goos and goarch are required", t.String())
		}
		if seen[t.String()] {
			return fmt.Errorf("duplicate target %q", t.String())
		}
		seen[t.String()] = true
	}
	if len(c.EnabledTargets()) == 0 {
		return errors.New("no target enabled")
	}
	return nil
}
