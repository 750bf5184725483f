package notification

import (
	"context"
	"time"
)

// Notification is a rendered message bound for a Teams webhook
type Notification struct {
	WebhookURL string
	Message    string
	Kind       string
	Time       time.Time
}

// Notifier interface for sending notifications
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

// Response is the raw reply of the webhook endpoint
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the endpoint answered with a 2xx status
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
