package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single webhook POST
const DefaultTimeout = 10 * time.Second

// maxResponseBody caps how much of the reply is kept in a Response
const maxResponseBody = 64 << 10

// TeamsClient posts notifications to a Microsoft Teams incoming webhook
type TeamsClient struct {
	httpClient *http.Client
	cardFormat string
	logger     *zap.Logger
}

// NewTeamsClient creates a new Teams webhook client
func NewTeamsClient(timeout time.Duration, cardFormat string, logger *zap.Logger) (*TeamsClient, error) {
	if err := ValidateCardFormat(cardFormat); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TeamsClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cardFormat: cardFormat,
		logger:     logger,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client
func (c *TeamsClient) WithHTTPClient(client *http.Client) *TeamsClient {
	c.httpClient = client
	return c
}

// Send implements the Notifier interface
func (c *TeamsClient) Send(ctx context.Context, notification Notification) error {
	resp, err := c.Post(ctx, notification)
	if err != nil {
		return err
	}

	if !resp.OK() {
		c.logger.Warn("teams webhook answered with non-2xx status",
			zap.Int("status", resp.StatusCode),
			zap.String("kind", notification.Kind),
			zap.ByteString("body", resp.Body))
	}
	return nil
}

// Post sends one notification and returns the raw reply. The status code is not checked
func (c *TeamsClient) Post(ctx context.Context, notification Notification) (*Response, error) {
	if err := ValidateWebhookURL(notification.WebhookURL); err != nil {
		return nil, err
	}

	body, err := BuildPayload(c.cardFormat, notification.Message)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notification.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to send notification"), ErrRequestFailed)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}
