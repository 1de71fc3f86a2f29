// Package logging carries a request scoped slog.Logger through contexts so
// the transport layer and the services share one set of log attributes.
package logging

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// ContextWithLogger derives a context carrying the logger. A nil logger
// leaves the context untouched.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached to the context, or nil when the
// context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger
}
