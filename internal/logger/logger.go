// Package logger builds the structured logger shared by the API server
// and the syncer. It wraps log/slog so every service logs with the same
// format (JSON by default, text for local development), level handling,
// and identity attributes.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/alissonpelizaro/rules-system/internal/config"
)

// New returns a logger configured from the app section, writing to
// stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit output, for tests that need to
// capture log lines.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
		// Source locations are useful in development and too expensive
		// to emit on every production log line.
		AddSource: cfg.Environment != config.EnvironmentProduction,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		// JSON for "json" and for anything unrecognized: log pipelines
		// expect machine-readable output.
		handler = slog.NewJSONHandler(w, opts)
	}

	// Identity attributes appear on every line emitted by this logger
	// and its children.
	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// parseLevel converts a level string to slog.Level, case-insensitively.
// Unrecognized values fall back to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
