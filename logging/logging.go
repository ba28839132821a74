package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures logging behavior.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// NewLogger builds a slog.Logger with sane defaults.
func NewLogger(options Options) *slog.Logger {
	output := options.Output
	if output == nil {
		output = os.Stdout
	}

	handlerOptions := &slog.HandlerOptions{Level: ParseLevel(options.Level)}
	if strings.ToLower(options.Format) == "json" {
		return slog.New(slog.NewJSONHandler(output, handlerOptions))
	}
	return slog.New(slog.NewTextHandler(output, handlerOptions))
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
