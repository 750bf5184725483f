package main

import "fmt"

// ExitError reports a wrapped command that exited with a non-zero status.
// The failure notification shows the status as the location and the last
// lines of output in place of a stack trace.
type ExitError struct {
	Path   string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Path, e.Code)
}

// FailureDetail implements explain.Detailer
func (e *ExitError) FailureDetail() (where, traceback string) {
	traceback = e.Output
	if traceback == "" {
		traceback = "(no output)"
	}
	return e.Error(), traceback
}
