package logger

import (
	"context"
	"log/slog"
)

// ctxKey is unexported so no other package can collide with our context
// entry.
type ctxKey struct{}

// WithContext attaches a request-scoped logger to the context. The API
// middleware uses it to carry per-request attributes (request id,
// method, path) into handlers and the engine.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by the context. It never
// returns nil: callers outside a request scope (tests, the syncer) get
// the process-wide default logger instead.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
