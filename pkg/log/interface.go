// Package log provides structured logging for multiblock modeling pipelines.
//
// The package defines a minimal, slog-compatible logging interface together
// with attribute keys for the quantities a consensus modeling run produces:
// block shapes, kernel weights, component counts, cross-validation progress
// and quality metrics. The interface is implementation-agnostic; the default
// backend is log/slog with JSON output, and tests swap in TestLogger to
// capture and inspect records.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("copls.fit").With(
//	    log.ModelNameKey, "ConsensusModel",
//	)
//	logger.Info("cross-validation started",
//	    log.OperationKey, log.OperationCrossValidate,
//	    log.SamplesKey, 20,
//	    log.BlocksKey, 3,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's
// log/slog. Fields are alternating key-value pairs, as in slog. With returns
// a derived logger carrying pre-populated fields, so pipeline stages can
// build contextual loggers once and reuse them across a run.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	// Debug records carry per-cell diagnostic detail and are usually
	// disabled outside development.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	// Warnings flag recoverable conditions, such as cross-validation cells
	// that failed and propagate as missing predictions.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// When a field value is an error carrying an embedded stack trace, the
	// configured handler extracts and attaches the trace.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip expensive field construction for disabled levels:
	//
	//	if logger.Enabled(ctx, log.LevelDebug) {
	//	    logger.Debug("fold detail", log.FoldKey, fold, "residuals", res)
	//	}
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level. Values are compatible with slog.Level.
type Level int

// Standard logging levels, values match slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. It exists so tests and
// embedding applications can inject their own backend.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum level for loggers created by this provider.
	SetLevel(level Level)
}
