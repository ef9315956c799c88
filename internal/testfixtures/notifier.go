package testfixtures

import (
	"context"
	"sync"

	"github.com/example/room-reservations/internal/application"
)

// RecordingNotifier captures notifications instead of delivering them.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []application.Notification
	Err  error
}

// Send implements application.Notifier.
func (n *RecordingNotifier) Send(ctx context.Context, notification application.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.Err
}

// Sent returns a copy of the captured notifications.
func (n *RecordingNotifier) Sent() []application.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]application.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// Last returns the newest notification and whether there was one.
func (n *RecordingNotifier) Last() (application.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return application.Notification{}, false
	}
	return n.sent[len(n.sent)-1], true
}
