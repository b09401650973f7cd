// Package logger provides structured logging functionality for the application.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the application's logging system. It creates a structured
// JSON logger writing to stdout at the given level, sets it as the process
// default so package-level slog functions use it too, and returns it.
//
// The level is parsed case-insensitively; an unknown level is an error rather
// than a silent fallback, since a misconfigured worker otherwise loses the
// delivery audit trail it exists to produce.
func Setup(logLevel string) (*slog.Logger, error) {
	level, err := parseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, nil
}

// parseLevel maps a configured level name onto a slog.Level.
func parseLevel(logLevel string) (slog.Level, error) {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", logLevel)
	}
}
