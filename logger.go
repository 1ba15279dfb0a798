package msgproto

import (
	"io"
	"log/slog"
)

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// DiscardLogger returns a Logger that drops every record.
func DiscardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// roleLogger prefixes every record with the role that emitted it.
type roleLogger struct {
	Logger
	role string
}

func withRole(l Logger, role string) Logger {
	return &roleLogger{Logger: l, role: role}
}

func (l *roleLogger) args(args []any) []any {
	return append([]any{"role", l.role}, args...)
}

func (l *roleLogger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.args(args)...) }
func (l *roleLogger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.args(args)...) }
func (l *roleLogger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.args(args)...) }
func (l *roleLogger) Error(msg string, args ...any) { l.Logger.Error(msg, l.args(args)...) }
