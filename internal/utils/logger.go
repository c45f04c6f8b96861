package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLogLevel maps a level name to a slog.Level, defaulting to info
func ParseLogLevel(logLevel string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
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

// NewLogger creates a text logger writing to w at the given level
func NewLogger(w io.Writer, logLevel string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLogLevel(logLevel),
	})
	return slog.New(handler)
}

// SetupLogging configures the global slog handler based on log level.
// Call once at startup, before any engine is constructed.
func SetupLogging(logLevel string) {
	slog.SetDefault(NewLogger(os.Stdout, logLevel))
}
