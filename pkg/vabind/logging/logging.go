package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const redactedPlaceholder = "[redacted]"

// Logger defines the subset of slog functionality used by the generator, the
// consumer check and the CI runner.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}

// New returns a Logger backed by the provided slog.Logger. Passing nil binds to
// slog.Default().
func New(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

// NewText returns a text Logger writing to w at the named level.
func NewText(w io.Writer, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return New(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))), nil
}

// Discard returns a Logger that drops every record.
func Discard() Logger {
	return New(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

func (l *slogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

func (l *slogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

// Placeholder returns the canonical string that represents a redacted value.
func Placeholder() string {
	return redactedPlaceholder
}

var secretMarkers = []string{"TOKEN", "SECRET", "PASSWORD", "CREDENTIAL"}

// EnvAttr returns a CI step environment entry as an attribute. The value is
// replaced by Placeholder when the key contains TOKEN, SECRET, PASSWORD or
// CREDENTIAL, in any case.
func EnvAttr(key, value string) slog.Attr {
	upper := strings.ToUpper(key)
	for _, m := range secretMarkers {
		if strings.Contains(upper, m) {
			return slog.String(key, redactedPlaceholder)
		}
	}
	return slog.String(key, value)
}
