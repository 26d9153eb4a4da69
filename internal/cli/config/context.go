package config

import (
	"context"
	"log/slog"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// IntoContext stores the config in a context.
func IntoContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from a context, or a default
// config when none was stored.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey{}).(*Config); ok {
		return cfg
	}
	return &Config{
		ExtensionsDir: DefaultExtensionsDir,
		APIBaseURL:    DefaultAPIBaseURL,
		LogFormat:     DefaultLogFormat,
	}
}

// WithLogger stores the logger in a context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from a context, or a discard logger
// when none was stored.
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}
