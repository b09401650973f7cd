package logger

import (
	"context"
	"log/slog"
)

// ctxKey is the private context key for the request-scoped logger.
type ctxKey struct{}

// WithLogger returns a context carrying the given logger. Handlers and
// services attach request-scoped attributes (request ID, component) once and
// everything downstream picks them up via FromContext.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by the context, or the process
// default logger when none was attached. It never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// FromContextOrDefault returns the logger carried by the context, falling
// back to the given logger (typically a component-scoped one) and then to the
// process default. It never returns nil.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
