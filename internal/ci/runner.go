package ci

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command is one external process run by a step.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env holds KEY=VALUE pairs added to the process environment.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner executes commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command, stdout, stderr io.Writer) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command, stdout, stderr io.Writer) error {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...) // #nosec G204 -- commands come from the build descriptor
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = stdout
	c.Stderr = stderr
	return c.Run()
}
