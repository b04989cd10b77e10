package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/cros-libva/libva-go/internal/config"
)

// Request is one invocation of the external generator.
type Request struct {
	Target config.Target
	// Dir holds Input and is the working directory of the invocation.
	Dir   string
	Input string
	// CFlags are the include and define flags for the C compiler.
	CFlags []string
}

// Generator produces Go type definitions from an emitted godefs input file.
type Generator interface {
	Godefs(ctx context.Context, req Request) ([]byte, error)
}

// GeneratorError carries the diagnostics of a failed external generator run
// verbatim.
type GeneratorError struct {
	Target  string
	Command string
	Output  string
	Err     error
}

func (e *GeneratorError) Error() string {
	msg := fmt.Sprintf("generator failed for %s: %v", e.Target, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *GeneratorError) Unwrap() error {
	return e.Err
}

// CgoGenerator runs `go tool cgo -godefs`.
type CgoGenerator struct {
	// GoBin is the go command; empty means "go" from PATH.
	GoBin string
	// Env is appended to the current environment.
	Env []string
}

// Godefs implements Generator.
func (g CgoGenerator) Godefs(ctx context.Context, req Request) ([]byte, error) {
	bin := g.GoBin
	if bin == "" {
		bin = "go"
	}
	objdir, err := os.MkdirTemp("", "vabind-cgo-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(objdir)

	args := []string{"tool", "cgo", "-godefs", "-objdir", objdir, "--"}
	args = append(args, req.CFlags...)
	args = append(args, req.Input)

	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- arguments come from the build descriptor
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), g.Env...)
	cmd.Env = append(cmd.Env,
		"GOOS="+req.Target.GOOS,
		"GOARCH="+req.Target.GOARCH,
		"CGO_ENABLED=1",
		"CGO_CFLAGS="+strings.Join(req.CFlags, " "),
	)
	if req.Target.CC != "" {
		cmd.Env = append(cmd.Env, "CC="+req.Target.CC)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &GeneratorError{
			Target:  req.Target.String(),
			Command: bin + " " + strings.Join(args, " "),
			Output:  stderr.String(),
			Err:     err,
		}
	}
	return stdout.Bytes(), nil
}

// CFlags returns the compiler flags for the external generator: the wrapper
// directory, every include path, then the defines.
func CFlags(wrapperDir string, includePaths, defines []string) []string {
	flags := []string{"-I" + wrapperDir}
	for _, p := range includePaths {
		flags = append(flags, "-I"+p)
	}
	for _, d := range defines {
		flags = append(flags, "-D"+d)
	}
	return flags
}
