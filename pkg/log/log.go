// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default logger at the given level. Unknown level names
// fall back to info. JOURNEY_LOG_FORMAT=json switches to the JSON handler
// for deployments that ship logs to a collector.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if os.Getenv("JOURNEY_LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "journey"))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
