package config

import (
	"context"
	"io"
	"log/slog"
)

// Logger provides structured logging for pipeline operations.
// This interface allows users to plug in their own logging implementation.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
// This is the default logger used when none is provided.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return &noopLogger{}
}

// slogLogger adapts a *slog.Logger to Logger.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l yields a no-op logger.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		return NopLogger()
	}
	return &slogLogger{l: l}
}

// NewTextLogger writes key=value lines to w, at debug level when verbose.
func NewTextLogger(w io.Writer, verbose bool) Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (s *slogLogger) Debug(msg string, keysAndValues ...interface{}) {
	s.l.Log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

func (s *slogLogger) Info(msg string, keysAndValues ...interface{}) {
	s.l.Log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

func (s *slogLogger) Warn(msg string, keysAndValues ...interface{}) {
	s.l.Log(context.Background(), slog.LevelWarn, msg, keysAndValues...)
}

func (s *slogLogger) Error(msg string, keysAndValues ...interface{}) {
	s.l.Log(context.Background(), slog.LevelError, msg, keysAndValues...)
}
