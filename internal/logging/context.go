package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// FromContext extracts the logger from context
// If no logger is found, returns a disabled logger (no-op)
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// WithComponent creates a child logger with a component field
func WithComponent(ctx context.Context, component string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("component", component).Logger()
	return WithContext(ctx, childLogger)
}

// WithViewID creates a child logger with a view_id field
func WithViewID(ctx context.Context, viewID uint64) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Uint64("view_id", viewID).Logger()
	return WithContext(ctx, childLogger)
}

// Component returns a child of logger tagged with a component field.
// Convenience for constructors that carry a zerolog.Logger directly.
func Component(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
