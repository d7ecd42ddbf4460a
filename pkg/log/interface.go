// Package log provides a structured logging interface for forest training
// and prediction.
//
// The package defines a minimal, slog-compatible Logger interface so callers
// can swap implementations without touching call sites. Two implementations
// ship with the package: a log/slog JSON logger with cockroachdb stacktrace
// extraction, and a zerolog-backed console logger for interactive use.
package log

import "context"

// Logger is a structured logging interface compatible with Go's log/slog.
// Fields are alternating key/value pairs; With returns a child logger with
// fields pre-populated.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs recoverable problem conditions.
	Warn(msg string, fields ...any)

	// Error logs error conditions. If a field value is an error created by
	// pkg/errors, its stack trace is attached to the record.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level; values are compatible with slog.Level.
type Level int

// Standard logging levels.
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
