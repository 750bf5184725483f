package process

import "github.com/cockroachdb/errors"

var (
	// ErrAlreadyWrapped is returned when teams-notify would wrap itself
	ErrAlreadyWrapped = errors.New("already wrapped by teams-notify")

	// ErrNotStarted is returned by Wait before Start
	ErrNotStarted = errors.New("process not started")

	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("process already started")
)
