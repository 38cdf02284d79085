package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithSet tags the context logger with the structure set a call works on.
// Without a context logger the context is returned unchanged.
func WithSet(ctx context.Context, set string) context.Context {
	l, ok := ctx.Value(ctxKey{}).(*zap.Logger)
	if !ok || set == "" {
		return ctx
	}
	return ContextWithLogger(ctx, l.With(zap.String("set", set)))
}
