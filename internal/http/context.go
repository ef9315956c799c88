package http

import (
	"context"
	"log/slog"

	"github.com/example/room-reservations/internal/logging"
)

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	authTokenContextKey contextKey = "auth_token"
)

// ContextWithLogger attaches the request logger. Services read it through
// the logging package.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithRequestID stores the request identifier.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext extracts the request identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	return id, ok
}

// ContextWithAuthToken stores the verified auth token.
func ContextWithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenContextKey, token)
}

// AuthTokenFromContext returns the token verified by RequireAuthToken.
func AuthTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(authTokenContextKey).(string)
	return token, ok && token != ""
}
