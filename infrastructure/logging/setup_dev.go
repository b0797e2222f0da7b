//go:build !prod

package logging

import (
	"log/slog"
	"os"
)

// Setup initializes logging for development mode.
// Logs go to os.Stderr as text; stdout stays free for command output.
// Returns the configured logger, a no-op close function, and any error.
func Setup(cfg *Config) (*slog.Logger, func() error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	})

	logger := slog.New(handler)
	setGlobal(logger)

	return logger, func() error { return nil }, nil
}
