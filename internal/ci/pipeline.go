package ci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/cros-libva/libva-go/internal/config"
	"github.com/cros-libva/libva-go/internal/gen"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// TagsPlaceholder in an exec step command is replaced by the build tags of
// the feature set plus the libva driver tag.
const TagsPlaceholder = "{{tags}}"

// DriverTag selects the libva-backed driver in pkg/va.
const DriverTag = "libva"

// Step statuses reported in the summary.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StepError reports the step that stopped the pipeline.
type StepError struct {
	Index int
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("ci step %d (%s) failed: %v", e.Index+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepResult is one row of the summary.
type StepResult struct {
	Name     string
	Kind     string
	Status   string
	Duration time.Duration
	Err      error
}

// Summary describes a pipeline run.
type Summary struct {
	RunID string
	Steps []StepResult
}

// Pipeline runs the configured steps.
type Pipeline struct {
	Config   *config.Config
	Features config.FeatureSet
	Runner   Runner
	Logger   logging.Logger
	// Output receives command output and the summary table.
	Output io.Writer
	// WorkDir holds the libva checkout and install prefix. Empty means a
	// temporary directory removed after the run.
	WorkDir string
	// Generator is used by generate steps; nil means gen.CgoGenerator.
	Generator gen.Generator

	env        []string
	includeDir string
	libDir     string
}

// Run executes every step in order, stopping at the first failure. The
// returned error is a *StepError.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if p.Config == nil {
		return nil, errors.New("ci: nil config")
	}
	if p.Runner == nil {
		p.Runner = ExecRunner{}
	}
	if p.Output == nil {
		p.Output = io.Discard
	}
	summary := &Summary{RunID: uuid.NewString()}
	logger := p.Logger
	if logger == nil {
		logger = logging.New(nil)
	}
	logger = logger.With("run_id", summary.RunID)

	if p.WorkDir == "" {
		dir, err := os.MkdirTemp("", "vabind-ci-")
		if err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
		defer os.RemoveAll(dir)
		p.WorkDir = dir
		defer func() { p.WorkDir = "" }()
	}

	logger.Info(ctx, "pipeline started", "steps", len(p.Config.CI), "tags", p.tags())
	var runErr error
	for i, step := range p.Config.CI {
		res := StepResult{Name: step.Name, Kind: kindOf(step)}
		if runErr != nil {
			res.Status = StatusSkipped
			summary.Steps = append(summary.Steps, res)
			continue
		}

		stepLogger := logger.With("step", step.Name)
		stepLogger.Info(ctx, "step started", "kind", res.Kind)
		start := time.Now()
		err := p.runStep(ctx, step, stepLogger)
		res.Duration = time.Since(start)
		if err != nil {
			res.Status, res.Err = StatusFailed, err
			runErr = &StepError{Index: i, Step: step.Name, Err: err}
			stepLogger.Error(ctx, "step failed", "error", err)
		} else {
			res.Status = StatusOK
			stepLogger.Info(ctx, "step finished", "duration", res.Duration)
		}
		summary.Steps = append(summary.Steps, res)
	}

	summary.Render(p.Output)
	return summary, runErr
}

func kindOf(step config.StepConfig) string {
	if step.Kind == "" {
		return "exec"
	}
	return step.Kind
}

func (p *Pipeline) runStep(ctx context.Context, step config.StepConfig, logger logging.Logger) error {
	switch kindOf(step) {
	case "exec":
		return p.exec(ctx, step, logger)
	case "libva":
		return p.buildLibva(ctx, logger)
	case "generate":
		return p.generate(ctx, logger)
	case "refcheck":
		return p.refcheck(ctx, logger)
	case "format":
		return p.format(ctx, logger)
	}
	return fmt.Errorf("unknown step kind %q", step.Kind)
}

// tags is the -tags value for consuming builds.
func (p *Pipeline) tags() string {
	return p.Features.TagsFlag(DriverTag)
}

func (p *Pipeline) exec(ctx context.Context, step config.StepConfig, logger logging.Logger) error {
	args := make([]string, len(step.Command))
	for i, a := range step.Command {
		args[i] = strings.ReplaceAll(a, TagsPlaceholder, p.tags())
	}
	dir := p.Config.Dir()
	if step.Dir != "" {
		dir = p.Config.Resolve(step.Dir)
	}

	env := append([]string(nil), p.env...)
	keys := make([]string, 0, len(step.Env))
	for k := range step.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = setEnv(env, k, step.Env[k])
		logger.Debug(ctx, "step env", logging.EnvAttr(k, step.Env[k]))
	}

	cmd := Command{Path: args[0], Args: args[1:], Dir: dir, Env: env}
	logger.Debug(ctx, "run command", "command", cmd.String(), "dir", dir)
	if err := p.Runner.Run(ctx, cmd, p.Output, p.Output); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

// setEnv sets key in env, replacing an earlier value.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

// Env returns the variables exported to steps so far.
func (p *Pipeline) Env() []string {
	return append([]string(nil), p.env...)
}

// Render prints the summary as a table.
func (s *Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"STEP", "KIND", "STATUS", "DURATION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	for _, st := range s.Steps {
		dur := "-"
		if st.Status != StatusSkipped {
			dur = st.Duration.Round(time.Millisecond).String()
		}
		table.Append([]string{st.Name, st.Kind, st.Status, dur})
	}
	table.Render()
}

// Failed returns the failed step, if any.
func (s *Summary) Failed() (StepResult, bool) {
	for _, st := range s.Steps {
		if st.Status == StatusFailed {
			return st, true
		}
	}
	return StepResult{}, false
}
