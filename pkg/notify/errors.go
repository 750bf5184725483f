package notify

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInterrupted marks a wrapped call stopped by the user. Failures
	// matching it or context.Canceled are never notified.
	ErrInterrupted = errors.New("interrupted")

	// ErrConfigRequired is returned by New when no configuration is supplied
	ErrConfigRequired = errors.New("notify: config is required")
)

// Version of the notifier package
const Version = "0.3.0"

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrInterrupted)
}
