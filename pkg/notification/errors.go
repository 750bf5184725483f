package notification

import "github.com/cockroachdb/errors"

var (
	// ErrWebhookURLRequired is returned when no webhook URL is available at dispatch time
	ErrWebhookURLRequired = errors.New("webhook url is required")

	// ErrInvalidWebhookURL is returned for URLs that are not http(s)
	ErrInvalidWebhookURL = errors.New("webhook url must start with http:// or https://")

	// ErrUnknownCardFormat is returned for unsupported card formats
	ErrUnknownCardFormat = errors.New("unknown card format")

	// ErrRequestFailed wraps transport-level failures of the webhook POST
	ErrRequestFailed = errors.New("teams: http request failed")
)
