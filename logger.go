package warden

import (
	"context"
	"log/slog"
)

// Logger wraps slog.Logger with request context.
type Logger struct {
	logger *slog.Logger
}

func newLogger(logger *slog.Logger, requestID string) Logger {
	if requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}
	return Logger{logger: logger}
}

// Info logs an info message.
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}

// Warn logs a warning message.
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// Error logs an error message.
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// Debug logs a debug message.
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

// Slog returns the underlying slog.Logger.
func (l Logger) Slog() *slog.Logger {
	return l.logger
}
