package format

import "github.com/cockroachdb/errors"

var (
	// ErrMalformedTemplate is returned when a template cannot be parsed.
	ErrMalformedTemplate = errors.New("malformed template")

	// ErrUnknownPlaceholder is returned when a template names a field the
	// notification kind does not provide.
	ErrUnknownPlaceholder = errors.New("unknown template placeholder")

	// ErrMissingField is returned when rendering finds no value for a placeholder.
	ErrMissingField = errors.New("missing template field")
)
