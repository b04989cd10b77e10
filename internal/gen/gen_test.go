package gen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/cdecl"
	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/internal/cpp"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

const testDescriptor = `
wrapper_header: lib/libva-wrapper.h
include_paths: [testdata/libva/include, testdata/libva/protected]
features:
  - name: protected_content
    define: INTEL_PROTECTED_CONTENT_HEADERS
    build_tag: va_protected_content
    enabled: true
    headers: [va_protected_content.h]
targets:
  - {goos: linux, goarch: amd64}
  - {goos: linux, goarch: arm64}
output: {package: raw}
`

var (
	typeLine  = regexp.MustCompile(`^type (\w+) C\.(\w+)$`)
	constLine = regexp.MustCompile(`^\t(\w+) = C\.\w+$`)
)

// fakeGenerator stands in for cgo -godefs: it echoes every type of the input
// as a struct referencing the raw cgo name, in the shape cgo prints.
type fakeGenerator struct {
	fail string

	mu    sync.Mutex
	calls []Request
}

func (f *fakeGenerator) Godefs(_ context.Context, req Request) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if req.Target.String() == f.fail {
		return nil, &GeneratorError{
			Target: req.Target.String(),
			Output: "In file included from zva_godefs.go:7:\nva/va.h:12:10: fatal error: va_version.h: No such file or directory",
			Err:    errors.New("exit status 1"),
		}
	}

	src, err := os.ReadFile(filepath.Join(req.Dir, req.Input))
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by cmd/cgo -godefs; DO NOT EDIT.\n// cgo -godefs -- %s %s\n\npackage raw\n\n",
		strings.Join(req.CFlags, " "), req.Input)
	for _, line := range strings.Split(string(src), "\n") {
		if m := typeLine.FindStringSubmatch(line); m != nil {
			fmt.Fprintf(&b, "type %s struct {\n\tRef *_Ctype_%s\n}\n\n", m[1], m[2])
		}
		if m := constLine.FindStringSubmatch(line); m != nil {
			fmt.Fprintf(&b, "const %s = 0x1\n\n", m[1])
		}
	}
	return []byte(b.String()), nil
}

func (f *fakeGenerator) requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}

func testConfig(t *testing.T, out string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testDescriptor))
	require.NoError(t, err)
	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	cfg.SetDir(root)
	cfg.Output.Dir = out
	require.NoError(t, cfg.Validate())
	return cfg
}

func features(t *testing.T, cfg *config.Config, protected bool) config.FeatureSet {
	t.Helper()
	fs, err := cfg.FeatureSet(map[string]bool{"protected_content": protected})
	require.NoError(t, err)
	return fs
}

func run(t *testing.T, cfg *config.Config, fs config.FeatureSet, g Generator) (*Result, error) {
	t.Helper()
	return Generate(context.Background(), Options{
		Config:    cfg,
		Features:  fs,
		Generator: g,
		Logger:    logging.Discard(),
	})
}

func readOut(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestGenerateWritesBindings(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw")
	cfg := testConfig(t, out)
	g := &fakeGenerator{}

	res, err := run(t, cfg, features(t, cfg, true), g)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"vabind.json",
		"zva_features.go",
		"zva_funcs.go",
		"zva_protected_content_types_linux_amd64.go",
		"zva_protected_content_types_linux_arm64.go",
		"zva_types_linux_amd64.go",
		"zva_types_linux_arm64.go",
	}, res.Files)
	assert.Len(t, g.requests(), 4)
	for _, req := range g.requests() {
		assert.Contains(t, req.CFlags, "-DINTEL_PROTECTED_CONTENT_HEADERS")
		for _, def := range Predefines {
			assert.NotContains(t, req.CFlags, "-D"+def)
		}
	}

	types := readOut(t, out, "zva_types_linux_amd64.go")
	assert.True(t, strings.HasPrefix(types, "// Code generated by vabindgen; DO NOT EDIT.\n"))
	assert.NotContains(t, types, "cgo -godefs")
	assert.NotContains(t, types, "_Ctype_")
	assert.Contains(t, types, "type VADisplayAttribute struct {\n\tRef *VADisplayAttribute\n}")
	assert.Contains(t, types, "type Drm_state struct {\n\tRef *Drm_state\n}")
	assert.Contains(t, types, "VA_STATUS_SUCCESS")
	assert.NotContains(t, types, "VA_PC_CIPHER_AES")

	protected := readOut(t, out, "zva_protected_content_types_linux_arm64.go")
	assert.Contains(t, protected, "//go:build va_protected_content\n")
	assert.Contains(t, protected, "VA_PC_CIPHER_AES")
	assert.Contains(t, protected, "type VAEncryptionSegmentInfo struct")

	funcs := readOut(t, out, "zva_funcs.go")
	assert.Contains(t, funcs, "//go:build cgo\n")
	assert.Contains(t, funcs, "#cgo pkg-config: libva libva-drm\n")
	assert.Contains(t, funcs, "#include \"libva-wrapper.h\"\n")
	assert.NotContains(t, funcs, "INTEL_PROTECTED_CONTENT_HEADERS")
	assert.Contains(t, funcs, "func VaInitialize(dpy VADisplay, major_version *int32, minor_version *int32) VAStatus {")
	assert.Contains(t, funcs, "res := C.vaInitialize(*(*C.VADisplay)(unsafe.Pointer(&dpy)), *(**C.int)(unsafe.Pointer(&major_version)), *(**C.int)(unsafe.Pointer(&minor_version)))")
	assert.NotContains(t, funcs, "vaStatusIsError")

	feats := readOut(t, out, FeaturesFile)
	assert.Contains(t, feats, `const FeatureKey = "protected_content=on"`)
	assert.Contains(t, feats, "FeatureProtectedContent = true")

	m, err := bindings.ReadManifest(filepath.Join(out, "vabind.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"linux_amd64", "linux_arm64"}, m.Targets)
	assert.Equal(t, "libva-wrapper.h", m.Wrapper)
	assert.Equal(t, res.Set.Len(), len(m.Symbols))
}

func TestWrapperHeaderScans(t *testing.T) {
	data, err := os.ReadFile("../../lib/libva-wrapper.h")
	require.NoError(t, err)
	src := string(data)
	assert.True(t, strings.HasPrefix(src, "// Copyright 2022 The ChromiumOS Authors\n"))
	assert.Contains(t, src, "#endif  // defined(INTEL_PROTECTED_CONTENT_HEADERS)\n")

	cfg := testConfig(t, filepath.Join(t.TempDir(), "raw"))
	set, err := BuildSet(cfg, features(t, cfg, true))
	require.NoError(t, err)
	_, ok := set.Lookup("VAEncryptionSegmentInfo")
	assert.True(t, ok)
}

func TestGenerateDeterministic(t *testing.T) {
	a := filepath.Join(t.TempDir(), "raw")
	b := filepath.Join(t.TempDir(), "raw")
	cfgA, cfgB := testConfig(t, a), testConfig(t, b)

	resA, err := run(t, cfgA, features(t, cfgA, true), &fakeGenerator{})
	require.NoError(t, err)
	resB, err := run(t, cfgB, features(t, cfgB, true), &fakeGenerator{})
	require.NoError(t, err)

	require.Equal(t, resA.Files, resB.Files)
	for _, name := range resA.Files {
		assert.Equal(t, readOut(t, a, name), readOut(t, b, name), name)
	}

	// A rerun over existing output gives the same bytes.
	_, err = run(t, cfgA, features(t, cfgA, true), &fakeGenerator{})
	require.NoError(t, err)
	for _, name := range resA.Files {
		assert.Equal(t, readOut(t, b, name), readOut(t, a, name), name)
	}
}

func TestGenerateMissingInclude(t *testing.T) {
	parent := t.TempDir()
	out := filepath.Join(parent, "raw")
	cfg := testConfig(t, out)
	cfg.WrapperHeader = "testdata/wrappers/missing.h"
	g := &fakeGenerator{}

	_, err := run(t, cfg, features(t, cfg, true), g)
	var missing *cpp.MissingIncludeError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "va/va_nonexistent.h", missing.Name)

	assert.Empty(t, g.requests())
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildSetMissingNestedInclude(t *testing.T) {
	inc := filepath.Join(t.TempDir(), "include")
	require.NoError(t, os.MkdirAll(filepath.Join(inc, "va"), 0o755))
	for _, name := range []string{"va.h", "va_drm.h", "va_drmcommon.h"} {
		data, err := os.ReadFile(filepath.Join("../../testdata/libva/include/va", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(inc, "va", name), data, 0o600))
	}
	cfg := testConfig(t, filepath.Join(t.TempDir(), "raw"))
	cfg.IncludePaths = []string{inc}

	_, err := BuildSet(cfg, features(t, cfg, false))
	var missing *cpp.MissingIncludeError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "va/va_version.h", missing.Name)
	assert.Equal(t, filepath.Join(inc, "va", "va.h"), missing.From)
}

func TestGenerateGeneratorFailureKeepsOutput(t *testing.T) {
	parent := t.TempDir()
	out := filepath.Join(parent, "raw")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "zva_types_linux_amd64.go"), []byte("old"), 0o600))
	cfg := testConfig(t, out)

	_, err := run(t, cfg, features(t, cfg, true), &fakeGenerator{fail: "linux_arm64"})
	var genErr *GeneratorError
	require.True(t, errors.As(err, &genErr), "got %v", err)
	assert.Equal(t, "linux_arm64", genErr.Target)
	assert.Contains(t, err.Error(), "fatal error: va_version.h: No such file or directory")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "old", readOut(t, out, "zva_types_linux_amd64.go"))

	siblings, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Len(t, siblings, 1, "staging dir left behind")
}

func TestGenerateProtectedContentToggle(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw")
	cfg := testConfig(t, out)

	on, err := run(t, cfg, features(t, cfg, true), &fakeGenerator{})
	require.NoError(t, err)
	off, err := run(t, cfg, features(t, cfg, false), &fakeGenerator{})
	require.NoError(t, err)

	onlyOn, onlyOff := bindings.Diff(on.Set, off.Set)
	assert.Empty(t, onlyOff)
	var protected []string
	for _, sym := range on.Set.Symbols() {
		if sym.Feature == "protected_content" {
			protected = append(protected, sym.Name)
		}
	}
	assert.Equal(t, protected, onlyOn)

	// The second run removed the feature files of the first.
	assert.NotContains(t, off.Files, "zva_protected_content_types_linux_amd64.go")
	_, err = os.Stat(filepath.Join(out, "zva_protected_content_types_linux_amd64.go"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, readOut(t, out, FeaturesFile), "FeatureProtectedContent = false")
}

func TestGenerateUnsupported(t *testing.T) {
	parent := t.TempDir()
	cfg := testConfig(t, filepath.Join(parent, "raw"))
	cfg.WrapperHeader = "testdata/wrappers/variadic.h"

	_, err := run(t, cfg, features(t, cfg, false), &fakeGenerator{})
	var unsupported *cdecl.UnsupportedError
	require.True(t, errors.As(err, &unsupported), "got %v", err)
	assert.Equal(t, "vaLogMessage", unsupported.Decl)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateVAOnly(t *testing.T) {
	dir := t.TempDir()
	wrapper := filepath.Join(dir, "va-only.h")
	require.NoError(t, os.WriteFile(wrapper, []byte("#include <va/va.h>\n"), 0o600))
	cfg := testConfig(t, filepath.Join(dir, "raw"))
	cfg.WrapperHeader = wrapper

	res, err := run(t, cfg, features(t, cfg, false), &fakeGenerator{})
	require.NoError(t, err)

	// VADisplay is an untyped pointer; the display attribute is the struct
	// the display API exposes.
	dpy, ok := res.Set.Lookup("VADisplay")
	require.True(t, ok)
	assert.Equal(t, bindings.KindTypedef, dpy.Kind)
	assert.Equal(t, "void *", dpy.Type)

	sym, ok := res.Set.Lookup("VADisplayAttribute")
	require.True(t, ok)
	assert.Equal(t, bindings.KindStruct, sym.Kind)
	var names []string
	for _, f := range sym.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"type", "min_value", "max_value", "value", "flags", "va_reserved"}, names)

	_, ok = res.Set.Lookup("vaGetDisplayDRM")
	assert.False(t, ok)
}

// TestGenerateCompiles runs the real external generator over the fixture
// headers and builds the result without cgo, the way a consumer that only
// needs the types would.
func TestGenerateCompiles(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go command and a C compiler")
	}
	if runtime.GOOS != "linux" {
		t.Skip("fixture headers target linux")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not found")
	}
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not found")
	}

	out := filepath.Join(t.TempDir(), "raw")
	cfg := testConfig(t, out)
	cfg.Targets = []config.Target{{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}}

	res, err := run(t, cfg, features(t, cfg, true), CgoGenerator{GoBin: goBin})
	require.NoError(t, err)

	types := readOut(t, out, "zva_types_linux_"+runtime.GOARCH+".go")
	assert.NotContains(t, types, "_Ctype_")
	assert.NotContains(t, types, "_cgopackage")
	assert.Contains(t, types, "[4]VADRMPRIMESurfaceDescriptor_objects")
	assert.Contains(t, types, "type VADRMPRIMESurfaceDescriptor_layers struct {")

	require.NoError(t, os.WriteFile(filepath.Join(out, "go.mod"), []byte("module example.com/raw\n\ngo 1.21\n"), 0o600))
	cmd := exec.Command(goBin, "build", "-tags", "va_protected_content", ".")
	cmd.Dir = out
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOWORK=off", "GOFLAGS=")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s", output)
	assert.NotEmpty(t, res.Files)
}
