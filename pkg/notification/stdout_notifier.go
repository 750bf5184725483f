package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var rule = strings.Repeat("=", 50)

// StdoutNotifier prints notifications instead of posting them (debug mode)
type StdoutNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutNotifier creates a new stdout notifier; a nil writer means os.Stdout
func NewStdoutNotifier(out io.Writer) *StdoutNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &StdoutNotifier{out: out}
}

// Send implements the Notifier interface
func (s *StdoutNotifier) Send(_ context.Context, notification Notification) error {
	if err := ValidateWebhookURL(notification.WebhookURL); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.out, "Webhook URL: %s\nMessage to be sent:\n%s\n%s\n%s\n\n\n",
		notification.WebhookURL, rule, notification.Message, rule)
	return err
}
