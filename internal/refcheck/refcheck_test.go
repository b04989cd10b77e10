package refcheck

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

const generated = "example.com/consumer/raw"

func fixtureSet(t *testing.T, names ...string) *bindings.Set {
	t.Helper()
	set := bindings.NewSet()
	require.NoError(t, set.Add(bindings.Symbol{Name: "vaInitialize", Kind: bindings.KindFunction}))
	require.NoError(t, set.Add(bindings.Symbol{Name: "VAStatus", Kind: bindings.KindTypedef, Type: "int"}))
	require.NoError(t, set.Add(bindings.Symbol{Name: "VA_STATUS_SUCCESS", Kind: bindings.KindConstant, Value: "0"}))
	for _, n := range names {
		require.NoError(t, set.Add(bindings.Symbol{Name: n, Kind: bindings.KindConstant, Value: "1"}))
	}
	return set
}

func check(t *testing.T, set *bindings.Set, opts Options) (*Report, error) {
	t.Helper()
	opts.Dir = "testdata/consumer"
	opts.Generated = generated
	opts.Extra = []string{"FeatureKey"}
	opts.Logger = logging.Discard()
	return Check(context.Background(), set, opts)
}

func TestCheckResolvedReferences(t *testing.T) {
	report, err := check(t, fixtureSet(t), Options{Patterns: []string{"./good"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/consumer/good"}, report.Importers)

	var names []string
	for _, r := range report.Refs {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"VaInitialize", "VA_STATUS_SUCCESS", "FeatureKey"}, names)
}

func TestCheckMissingSymbol(t *testing.T) {
	_, err := check(t, fixtureSet(t), Options{Patterns: []string{"./bad"}})

	var missing *MissingSymbolsError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, []string{"VaTerminate"}, missing.Names())
	assert.Equal(t, "example.com/consumer/bad", missing.Refs[0].Package)
	assert.Contains(t, missing.Refs[0].Pos, filepath.Join("bad", "bad.go"))
	assert.Contains(t, err.Error(), "VaTerminate not in generated bindings")
}

func TestCheckBuildTags(t *testing.T) {
	// Without the tag the protected file is not part of the build.
	_, err := check(t, fixtureSet(t), Options{Patterns: []string{"./tagged"}})
	require.NoError(t, err)

	_, err = check(t, fixtureSet(t), Options{Patterns: []string{"./tagged"}, Tags: []string{"va_protected_content"}})
	var missing *MissingSymbolsError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, []string{"VA_PC_CIPHER_AES"}, missing.Names())

	_, err = check(t, fixtureSet(t, "VA_PC_CIPHER_AES"), Options{Patterns: []string{"./tagged"}, Tags: []string{"va_protected_content"}})
	require.NoError(t, err)
}

func TestCheckVisibility(t *testing.T) {
	_, err := check(t, fixtureSet(t, "VaTerminate"), Options{
		Patterns:   []string{"./good", "./bad"},
		Visibility: []string{"example.com/consumer/good"},
	})

	var vis *VisibilityError
	require.True(t, errors.As(err, &vis), "got %v", err)
	assert.Equal(t, []string{"example.com/consumer/bad"}, vis.Packages)
}

func TestVisible(t *testing.T) {
	patterns := []string{"github.com/cros-libva/libva-go/pkg/va/...", "example.com/tool"}
	assert.True(t, Visible("github.com/cros-libva/libva-go/pkg/va", patterns))
	assert.True(t, Visible("github.com/cros-libva/libva-go/pkg/va/protected", patterns))
	assert.True(t, Visible("example.com/tool", patterns))
	assert.False(t, Visible("github.com/cros-libva/libva-go/pkg/vabind", patterns))
	assert.False(t, Visible("example.com/tool/sub", patterns))
	assert.True(t, Visible("anything", nil))
}

func TestImportPath(t *testing.T) {
	root, err := filepath.Abs("testdata/consumer")
	require.NoError(t, err)

	got, err := ImportPath(root, filepath.Join(root, "raw"))
	require.NoError(t, err)
	assert.Equal(t, "example.com/consumer/raw", got)

	_, err = ImportPath(root, filepath.Dir(root))
	require.Error(t, err)
}

func TestCheckConfigNotGenerated(t *testing.T) {
	cfg, err := config.Parse([]byte("wrapper_header: wrapper.h\noutput:\n  dir: raw\n"))
	require.NoError(t, err)
	cfg.SetDir(t.TempDir())
	fs, err := cfg.FeatureSet(nil)
	require.NoError(t, err)

	_, err = CheckConfig(context.Background(), cfg, fs, nil, nil, logging.Discard())
	require.ErrorIs(t, err, bindings.ErrNotBuilt)
}
