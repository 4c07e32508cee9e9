// Package logger builds the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout at the given level.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// FromEnv builds the logger with the level taken from AUDIT_LOG_LEVEL
// (debug, info, warn, error). Defaults to info.
func FromEnv() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("AUDIT_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return New(level)
}
