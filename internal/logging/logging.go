// Package logging configures the process-wide slog logger shared by the
// API server and the queue worker (C11) -- two separate binaries whose
// logs land in the same aggregator, so every line is tagged with which
// one produced it.
package logging

import (
	"log/slog"
	"os"
)

// Setup configures the global logger based on env ("production" or
// anything else) and tags every record with component (e.g. "api",
// "worker", "seed") so a shared log sink can tell the processes apart.
// It returns the logger and also installs it as the default global
// logger.
func Setup(env, component string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		// JSON for machine parsing (log aggregators, Sentry breadcrumbs).
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	if component != "" {
		logger = logger.With("component", component)
	}
	slog.SetDefault(logger)

	return logger
}
