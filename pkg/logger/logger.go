// Package logger configures the process-wide structured logger.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the root logger is constructed.
type Config struct {
	// Level is one of "debug", "info", "warn", "error" (case-insensitive).
	// Unrecognized values fall back to "info".
	Level string
	// Pretty enables a human-readable console writer. Production deployments
	// should leave this false so logs are structured JSON.
	Pretty bool
}

// New builds a zerolog.Logger writing to stdout with the given level.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	var writer = os.Stdout
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
		}).Level(level).With().Timestamp().Logger()
	}

	return logger
}

func parseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
