package application

import "context"

// Notification is an outbound message to a requester.
type Notification struct {
	To      string
	Subject string
	Body    string
	Data    map[string]string
}

// Notifier delivers notifications. Services log delivery failures and never
// roll back state because of them.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

type discardNotifier struct{}

func (discardNotifier) Send(context.Context, Notification) error { return nil }
