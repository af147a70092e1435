package cli

import (
	"io"
	"log/slog"
	"strings"
)

// parseLevel maps a config log level to a slog level. Unknown levels mean info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the text logger every component receives. --verbose
// forces debug regardless of the configured level.
func newLogger(w io.Writer, level string, debug bool) *slog.Logger {
	lvl := parseLevel(level)
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
