// Package logging carries the request logger through contexts and builds the
// JSON logger used by the commands.
package logging

import (
	"context"
	"io"
	"log/slog"
)

type ctxKey struct{}

// ContextWithLogger returns ctx carrying logger. A nil logger leaves ctx as is.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached by ContextWithLogger, or nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(ctxKey{}).(*slog.Logger)
	return logger
}

// OrDefault returns logger unless it is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Scoped picks the request logger from ctx, then base, then slog.Default, and
// tags it with kind=name plus the operation and any extra attributes.
func Scoped(ctx context.Context, base *slog.Logger, kind, name, operation string, attrs ...any) *slog.Logger {
	logger := FromContext(ctx)
	if logger == nil {
		logger = OrDefault(base)
	}

	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, kind, name)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}

// New returns a JSON logger writing records at or above level to w.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
