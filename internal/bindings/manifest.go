package bindings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// ManifestVersion is bumped when the manifest layout changes.
const ManifestVersion = 1

// Manifest is the JSON record of a generated binding set, written next to the
// generated Go files. It holds no timestamps so that identical inputs give
// identical bytes.
type Manifest struct {
	Version  int             `json:"version"`
	Library  string          `json:"library"`
	Wrapper  string          `json:"wrapper"`
	Package  string          `json:"package"`
	Features map[string]bool `json:"features"`
	Targets  []string        `json:"targets"`
	Symbols  []Symbol        `json:"symbols"`
}

// NewManifest records set with the given generation parameters.
func NewManifest(set *Set, library, wrapper, pkg string, features map[string]bool, targets []string) *Manifest {
	if features == nil {
		features = map[string]bool{}
	}
	return &Manifest{
		Version:  ManifestVersion,
		Library:  library,
		Wrapper:  wrapper,
		Package:  pkg,
		Features: features,
		Targets:  append([]string(nil), targets...),
		Symbols:  set.Symbols(),
	}
}

// Marshal renders the manifest as indented JSON with a trailing newline.
// Map keys are sorted by encoding/json and symbols are sorted by name.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Set rebuilds the binding set recorded in the manifest.
func (m *Manifest) Set() (*Set, error) {
	set := NewSet()
	for _, sym := range m.Symbols {
		if err := set.Add(sym); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// ReadManifest loads a manifest file. A missing file is reported as
// ErrNotBuilt.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the build descriptor
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotBuilt)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", path, m.Version)
	}
	return &m, nil
}
