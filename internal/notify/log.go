// Package notify delivers reservation notifications to requesters.
package notify

import (
	"context"
	"log/slog"

	"github.com/example/room-reservations/internal/application"
)

// LogNotifier writes notifications to a logger instead of sending them. It
// is the default for local runs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger, or slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send implements application.Notifier.
func (n *LogNotifier) Send(ctx context.Context, notification application.Notification) error {
	attrs := []any{
		"to", notification.To,
		"subject", notification.Subject,
		"body", notification.Body,
	}
	if len(notification.Data) > 0 {
		attrs = append(attrs, "data", notification.Data)
	}
	n.logger.With("component", "notify").InfoContext(ctx, "notification", attrs...)
	return nil
}
