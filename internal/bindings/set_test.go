package bindings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAdd(t *testing.T) {
	set := NewSet()
	fn := Symbol{Name: "vaTerminate", Kind: KindFunction, Header: "va/va.h", Result: "VAStatus"}
	require.NoError(t, set.Add(fn))

	// Identical redeclarations merge, keeping the first header.
	again := fn
	again.Header = "va/va_compat.h"
	require.NoError(t, set.Add(again))
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, "va/va.h", lookup(t, set, "vaTerminate").Header)
	assert.Equal(t, "VaTerminate", lookup(t, set, "vaTerminate").GoName)

	changed := fn
	changed.Result = "int"
	var dup *DuplicateSymbolError
	require.True(t, errors.As(set.Add(changed), &dup))
	assert.Equal(t, "vaTerminate", dup.Name)
}

func TestSetOpaqueMerge(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(Symbol{Name: "VAImage", Kind: KindOpaque, Tag: "struct _VAImage"}))
	require.NoError(t, set.Add(Symbol{Name: "VAImage", Kind: KindStruct, Tag: "struct _VAImage", Fields: []Field{{Name: "image_id", Type: "VAImageID"}}}))
	require.NoError(t, set.Add(Symbol{Name: "VAImage", Kind: KindOpaque, Tag: "struct _VAImage"}))

	sym := lookup(t, set, "VAImage")
	assert.Equal(t, KindStruct, sym.Kind)
	assert.Len(t, sym.Fields, 1)
}

func TestSetGoNameClash(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(Symbol{Name: "vaThing", Kind: KindFunction, Header: "va/a.h"}))
	err := set.Add(Symbol{Name: "VaThing", Kind: KindTypedef, Header: "va/b.h", Type: "int"})

	var dup *DuplicateSymbolError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "VaThing", dup.GoName)
	assert.Equal(t, "vaThing", dup.Other)
	assert.Contains(t, err.Error(), "both map to Go name VaThing")
}

func TestSetOrderingAndDiff(t *testing.T) {
	a, b := NewSet(), NewSet()
	for _, n := range []string{"VA_C", "VA_A", "VA_B"} {
		require.NoError(t, a.Add(Symbol{Name: n, Kind: KindConstant}))
	}
	for _, n := range []string{"VA_B", "VA_D"} {
		require.NoError(t, b.Add(Symbol{Name: n, Kind: KindConstant}))
	}
	assert.Equal(t, []string{"VA_A", "VA_B", "VA_C"}, a.Names())

	onlyA, onlyB := Diff(a, b)
	assert.Equal(t, []string{"VA_A", "VA_C"}, onlyA)
	assert.Equal(t, []string{"VA_D"}, onlyB)

	assert.Len(t, a.Filter(KindConstant), 3)
	assert.Empty(t, a.Filter(KindFunction))
}

func TestGoName(t *testing.T) {
	tests := map[string]string{
		"vaInitialize":      "VaInitialize",
		"VADisplay":         "VADisplay",
		"_VAImage":          "X_VAImage",
		"drm_state":         "Drm_state",
		"VA_STATUS_SUCCESS": "VA_STATUS_SUCCESS",
	}
	for in, want := range tests {
		assert.Equal(t, want, GoName(in), in)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	set := build(t, wrapperHeader, protectedDef)
	m := NewManifest(set, "libva", "libva-wrapper.h", "raw", map[string]bool{"protected_content": true}, []string{"linux_amd64", "linux_arm64"})
	data, err := m.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind": "struct"`)
	assert.Contains(t, string(data), `"protected_content": true`)

	path := filepath.Join(t.TempDir(), "vabind.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	read, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"linux_amd64", "linux_arm64"}, read.Targets)

	restored, err := read.Set()
	require.NoError(t, err)
	onlyA, onlyB := Diff(set, restored)
	assert.Empty(t, onlyA)
	assert.Empty(t, onlyB)
	assert.Equal(t, KindUnion, lookup(t, restored, "VAConfigAttribValEncJPEG").Kind)
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "vabind.json"))
	require.ErrorIs(t, err, ErrNotBuilt)
}
