package config

import (
	"context"
	"log/slog"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded config on the context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config stored by WithConfig. Returns a default
// config if none is present so help paths never panic.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return &Config{
		ModelsDir:   DefaultModelsDir,
		StatePath:   DefaultStateFile,
		Environment: DefaultEnv,
		Project:     DefaultProject,
	}
}

// WithLogger stores the logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the context, falling back to discard.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
