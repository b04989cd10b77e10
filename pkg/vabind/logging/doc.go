// Package logging provides a minimal logging facade for vabind.
//
// The Logger interface wraps the context-aware subset of log/slog:
//
//	type Logger interface {
//	    Debug(ctx context.Context, msg string, args ...any)
//	    Info(ctx context.Context, msg string, args ...any)
//	    Warn(ctx context.Context, msg string, args ...any)
//	    Error(ctx context.Context, msg string, args ...any)
//	    With(args ...any) Logger
//	}
//
// # Default Implementation
//
//	// Use default logger (slog.Default())
//	logger := logging.New(nil)
//
//	// Text output at a level chosen on the command line
//	logger, err := logging.NewText(os.Stderr, "debug")
//
// # Redaction Support
//
// CI steps may carry tokens in their environment. EnvAttr logs such values
// as "[redacted]":
//
//	logger.Info(ctx, "step env", logging.EnvAttr("GITHUB_TOKEN", tok))
//	// Logs: GITHUB_TOKEN="[redacted]"
package logging
