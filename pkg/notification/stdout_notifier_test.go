package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewStdoutNotifier(&buf)

	err := n.Send(context.Background(), Notification{
		WebhookURL: "https://example.webhook.office.com/abc",
		Message:    "hello\nworld",
	})
	require.NoError(t, err)

	rule := strings.Repeat("=", 50)
	want := "Webhook URL: https://example.webhook.office.com/abc\n" +
		"Message to be sent:\n" +
		rule + "\n" +
		"hello\nworld\n" +
		rule + "\n" +
		"\n\n"
	assert.Equal(t, want, buf.String())
}

func TestStdoutNotifierRequiresWebhookURL(t *testing.T) {
	var buf bytes.Buffer
	n := NewStdoutNotifier(&buf)

	err := n.Send(context.Background(), Notification{Message: "hello"})
	assert.True(t, errors.Is(err, ErrWebhookURLRequired))
	assert.Empty(t, buf.String())
}
