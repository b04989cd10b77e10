package config

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureSet is the resolved set of named booleans. The header scan, the
// external generator and the consuming Go code all read it, so the same
// answer is given to each.
type FeatureSet struct {
	features []Feature
}

// FeatureSet resolves the configured features, applying overrides by name.
// An override naming an unknown feature is an error.
func (c *Config) FeatureSet(overrides map[string]bool) (FeatureSet, error) {
	fs := FeatureSet{features: append([]Feature(nil), c.Features...)}
	for name, on := range overrides {
		found := false
		for i := range fs.features {
			if fs.features[i].Name == name {
				fs.features[i].Enabled = on
				found = true
			}
		}
		if !found {
			return FeatureSet{}, fmt.Errorf("unknown feature %q", name)
		}
	}
	return fs, nil
}

// Enabled reports whether the named feature is on.
func (fs FeatureSet) Enabled(name string) bool {
	for _, f := range fs.features {
		if f.Name == name {
			return f.Enabled
		}
	}
	return false
}

// All returns every feature, enabled or not, sorted by name.
func (fs FeatureSet) All() []Feature {
	out := append([]Feature(nil), fs.features...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Defines returns the preprocessor macros of enabled features, sorted.
func (fs FeatureSet) Defines() []string {
	var out []string
	for _, f := range fs.features {
		if f.Enabled {
			out = append(out, f.Define)
		}
	}
	sort.Strings(out)
	return out
}

// BuildTags returns the Go build tags of enabled features, sorted.
func (fs FeatureSet) BuildTags() []string {
	var out []string
	for _, f := range fs.features {
		if f.Enabled {
			out = append(out, f.BuildTag)
		}
	}
	sort.Strings(out)
	return out
}

// TagsFlag renders BuildTags for `go build -tags`, with extra tags appended.
func (fs FeatureSet) TagsFlag(extra ...string) string {
	return strings.Join(append(fs.BuildTags(), extra...), ",")
}

// FeatureForHeader returns the feature owning header (matched on the base
// path suffix), or "" when the header is unconditional.
func (fs FeatureSet) FeatureForHeader(header string) string {
	for _, f := range fs.features {
		for _, h := range f.Headers {
			if header == h || strings.HasSuffix(header, "/"+h) {
				return f.Name
			}
		}
	}
	return ""
}

// Key is a stable string identifying the set, used in generated file
// headers and cache keys.
func (fs FeatureSet) Key() string {
	var parts []string
	for _, f := range fs.All() {
		state := "off"
		if f.Enabled {
			state = "on"
		}
		parts = append(parts, f.Name+"="+state)
	}
	return strings.Join(parts, ",")
}
