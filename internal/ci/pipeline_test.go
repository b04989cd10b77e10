package ci

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/internal/gen"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

type fakeRunner struct {
	// fail maps a command path to the error it returns.
	fail map[string]error
	// onRun runs before a command succeeds.
	onRun func(cmd Command) error

	mu   sync.Mutex
	cmds []Command
}

func (f *fakeRunner) Run(_ context.Context, cmd Command, stdout, _ io.Writer) error {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	f.mu.Unlock()
	if err := f.fail[cmd.Path]; err != nil {
		return err
	}
	_, _ = io.WriteString(stdout, cmd.String()+"\n")
	if f.onRun != nil {
		return f.onRun(cmd)
	}
	return nil
}

func (f *fakeRunner) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.cmds {
		out = append(out, c.Path)
	}
	return out
}

func (f *fakeRunner) find(path string) (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cmds {
		if c.Path == path {
			return c, true
		}
	}
	return Command{}, false
}

func testConfig(t *testing.T, descriptor string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(descriptor))
	require.NoError(t, err)
	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	cfg.SetDir(root)
	require.NoError(t, cfg.Validate())
	return cfg
}

const protectedFeature = `
features:
  - name: protected_content
    define: INTEL_PROTECTED_CONTENT_HEADERS
    build_tag: va_protected_content
    enabled: true
    headers: [va_protected_content.h]
`

// installFixture makes the fake ninja install the fixture headers under the
// libva prefix.
func installFixture(t *testing.T, work string) func(Command) error {
	return func(cmd Command) error {
		if cmd.Path != "ninja" {
			return nil
		}
		src, err := filepath.Abs("../../testdata/libva/include")
		require.NoError(t, err)
		dst := filepath.Join(work, "libva-install", "include")
		return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(src, path)
			if d.IsDir() {
				return os.MkdirAll(filepath.Join(dst, rel), 0o755)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dst, rel), data, 0o600)
		})
	}
}

func newPipeline(t *testing.T, cfg *config.Config, runner Runner, out io.Writer) *Pipeline {
	t.Helper()
	features, err := cfg.FeatureSet(nil)
	require.NoError(t, err)
	return &Pipeline{
		Config:   cfg,
		Features: features,
		Runner:   runner,
		Logger:   logging.Discard(),
		Output:   out,
		WorkDir:  t.TempDir(),
	}
}

func TestPipelineMissingLibvaStopsBeforeBuild(t *testing.T) {
	cfg := testConfig(t, "wrapper_header: lib/libva-wrapper.h\n")
	runner := &fakeRunner{fail: map[string]error{
		"git": errors.New("fatal: Remote branch 2.22.0 not found in upstream origin"),
	}}
	var out bytes.Buffer

	summary, err := newPipeline(t, cfg, runner, &out).Run(context.Background())
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr), "got %v", err)
	assert.Equal(t, "build-libva", stepErr.Step)
	assert.Equal(t, 1, stepErr.Index)
	assert.Contains(t, err.Error(), "Remote branch 2.22.0 not found")

	assert.Equal(t, []string{"sudo", "git"}, runner.paths())
	_, ranGo := runner.find("go")
	assert.False(t, ranGo)

	require.Len(t, summary.Steps, len(config.DefaultSteps()))
	assert.Equal(t, StatusOK, summary.Steps[0].Status)
	assert.Equal(t, StatusFailed, summary.Steps[1].Status)
	for _, st := range summary.Steps[2:] {
		assert.Equal(t, StatusSkipped, st.Status, st.Name)
	}
	failed, ok := summary.Failed()
	require.True(t, ok)
	assert.Equal(t, "build-libva", failed.Name)

	assert.NotEmpty(t, summary.RunID)
	assert.Contains(t, out.String(), "run "+summary.RunID)
	assert.Contains(t, out.String(), "STEP")
	assert.Contains(t, out.String(), "skipped")
}

func TestPipelineLibvaNotInstalled(t *testing.T) {
	cfg := testConfig(t, "wrapper_header: lib/libva-wrapper.h\nci:\n  - {name: build-libva, kind: libva}\n  - {name: build, command: [go, build, ./...]}\n")
	runner := &fakeRunner{}

	_, err := newPipeline(t, cfg, runner, io.Discard).Run(context.Background())
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr), "got %v", err)
	assert.Equal(t, "build-libva", stepErr.Step)
	assert.Contains(t, err.Error(), "libva 2.22.0 not installed")
	assert.Equal(t, []string{"git", "meson", "ninja"}, runner.paths())
}

func TestPipelineExportsLibraryEnv(t *testing.T) {
	cfg := testConfig(t, "wrapper_header: lib/libva-wrapper.h\n"+protectedFeature+
		"ci:\n  - {name: build-libva, kind: libva}\n  - {name: build, command: [go, build, -tags, '{{tags}}', ./...], env: {GOFLAGS: -mod=mod}}\n")
	runner := &fakeRunner{}
	p := newPipeline(t, cfg, runner, io.Discard)
	runner.onRun = installFixture(t, p.WorkDir)
	prefix := filepath.Join(p.WorkDir, "libva-install")

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	meson, ok := runner.find("meson")
	require.True(t, ok)
	assert.Contains(t, meson.Args, prefix)

	build, ok := runner.find("go")
	require.True(t, ok)
	assert.Equal(t, []string{"build", "-tags", "va_protected_content,libva", "./..."}, build.Args)
	assert.Equal(t, cfg.Dir(), build.Dir)

	env := strings.Join(build.Env, "\n")
	assert.Contains(t, env, "LIBVA_INCLUDE_DIR="+filepath.Join(prefix, "include"))
	assert.Contains(t, env, "LIBVA_LIB_DIR="+filepath.Join(prefix, "lib"))
	assert.Contains(t, env, "PKG_CONFIG_PATH="+filepath.Join(prefix, "lib", "pkgconfig"))
	assert.Contains(t, env, "LD_LIBRARY_PATH="+filepath.Join(prefix, "lib"))
	assert.Contains(t, env, "CGO_CFLAGS=-I"+filepath.Join(prefix, "include"))
	assert.Contains(t, env, "CGO_LDFLAGS=-L"+filepath.Join(prefix, "lib"))
	assert.Contains(t, env, "GOFLAGS=-mod=mod")
}

func TestPipelineRedactsSecrets(t *testing.T) {
	cfg := testConfig(t, "wrapper_header: lib/libva-wrapper.h\nci:\n  - {name: upload, command: [curl, -T, out.txt], dir: lib, env: {UPLOAD_TOKEN: ghp_secret}}\n")
	runner := &fakeRunner{}
	var logs bytes.Buffer
	logger, err := logging.NewText(&logs, "debug")
	require.NoError(t, err)
	p := newPipeline(t, cfg, runner, io.Discard)
	p.Logger = logger

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	cmd, ok := runner.find("curl")
	require.True(t, ok)
	assert.Contains(t, cmd.Env, "UPLOAD_TOKEN=ghp_secret")
	assert.Equal(t, filepath.Join(cfg.Dir(), "lib"), cmd.Dir)
	assert.NotContains(t, logs.String(), "ghp_secret")
	assert.Contains(t, logs.String(), logging.Placeholder())
	assert.Contains(t, logs.String(), "run_id=")
}

type echoGenerator struct{}

func (echoGenerator) Godefs(context.Context, gen.Request) ([]byte, error) {
	return []byte("package raw\n"), nil
}

func TestPipelineGenerateUsesInstalledHeaders(t *testing.T) {
	out := t.TempDir()
	cfg := testConfig(t, "wrapper_header: lib/libva-wrapper.h\ninclude_paths: [testdata/libva/protected]\n"+protectedFeature+
		"ci:\n  - {name: build-libva, kind: libva}\n  - {name: generate, kind: generate}\n")
	cfg.Output.Dir = out
	runner := &fakeRunner{}
	p := newPipeline(t, cfg, runner, io.Discard)
	p.Generator = echoGenerator{}
	runner.onRun = installFixture(t, p.WorkDir)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "vabind.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "zva_funcs.go"))
	require.NoError(t, err)
}

func TestPipelineGenerateWithoutLibva(t *testing.T) {
	cfg := testConfig(t, "wrapper_header: lib/libva-wrapper.h\ninclude_paths: [testdata/libva/protected]\nci:\n  - {name: generate, kind: generate}\n  - {name: build, command: [go, build, ./...]}\n")
	cfg.Output.Dir = t.TempDir()
	runner := &fakeRunner{}
	p := newPipeline(t, cfg, runner, io.Discard)
	p.Generator = echoGenerator{}

	_, err := p.Run(context.Background())
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr), "got %v", err)
	assert.Equal(t, "generate", stepErr.Step)
	assert.Empty(t, runner.paths())
}

func TestUnformatted(t *testing.T) {
	root := t.TempDir()
	write := func(rel, src string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	}
	write("good.go", "package p\n\nfunc F() {}\n")
	write("sub/bad.go", "package sub\nfunc  F( ) {\n}\n")
	write("testdata/ignored.go", "package  x\n")
	write("_work/ignored.go", "package  x\n")

	files, err := Unformatted(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/bad.go"}, files)
}

func TestSetEnv(t *testing.T) {
	env := setEnv(nil, "A", "1")
	env = setEnv(env, "B", "2")
	env = setEnv(env, "A", "3")
	assert.Equal(t, []string{"A=3", "B=2"}, env)
}
