package notification

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// Card formats accepted by the Teams client
const (
	// CardAdaptive wraps the message in an Adaptive Card attachment
	CardAdaptive = "adaptive"
	// CardConnector sends a legacy Office 365 connector card
	CardConnector = "connector"
)

const (
	adaptiveContentType = "application/vnd.microsoft.card.adaptive"
	adaptiveSchema      = "http://adaptivecards.io/schemas/adaptive-card.json"
	adaptiveVersion     = "1.2"
)

type messageCard struct {
	Type        string       `json:"type"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	ContentType string       `json:"contentType"`
	ContentURL  *string      `json:"contentUrl"`
	Content     adaptiveCard `json:"content"`
}

type adaptiveCard struct {
	Schema  string      `json:"$schema"`
	Type    string      `json:"type"`
	Version string      `json:"version"`
	Body    []textBlock `json:"body"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type connectorCard struct {
	Text string `json:"text"`
}

// ValidateCardFormat checks that format names a supported card; empty means adaptive
func ValidateCardFormat(format string) error {
	switch format {
	case "", CardAdaptive, CardConnector:
		return nil
	}
	return errors.Wrapf(ErrUnknownCardFormat, "%q", format)
}

// BuildPayload encodes message as the JSON body for the given card format
func BuildPayload(format, message string) ([]byte, error) {
	var payload any
	switch format {
	case "", CardAdaptive:
		payload = messageCard{
			Type: "message",
			Attachments: []attachment{{
				ContentType: adaptiveContentType,
				Content: adaptiveCard{
					Schema:  adaptiveSchema,
					Type:    "AdaptiveCard",
					Version: adaptiveVersion,
					Body:    []textBlock{{Type: "TextBlock", Text: message}},
				},
			}},
		}
	case CardConnector:
		payload = connectorCard{Text: message}
	default:
		return nil, errors.Wrapf(ErrUnknownCardFormat, "%q", format)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal card")
	}
	return data, nil
}

// ValidateWebhookURL checks that a dispatch target is present and http(s)
func ValidateWebhookURL(url string) error {
	if url == "" {
		return ErrWebhookURLRequired
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.Wrapf(ErrInvalidWebhookURL, "%q", url)
	}
	return nil
}
