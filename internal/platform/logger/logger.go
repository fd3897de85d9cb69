// Package logger provides structured logging setup for the session job
// core.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup creates a structured JSON logger at the configured level,
// installs it as the process default, and returns it. An unknown level
// falls back to info with a warning.
func Setup(logLevel string) *slog.Logger {
	return setup(logLevel, os.Stdout)
}

func setup(logLevel string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("invalid log level configured, using default",
			"configured_level", logLevel,
			"default_level", "info")
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
