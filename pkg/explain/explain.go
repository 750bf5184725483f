// Package explain turns a failed call into the three text fields a failure
// notification shows: a short message, where it happened, and a traceback.
package explain

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

// Explanation is the human-readable account of a failure.
type Explanation struct {
	Message   string
	Where     string
	Traceback string
}

// Explainer produces an Explanation for a captured failure.
type Explainer interface {
	Explain(f *Failure) Explanation
}

// Detailer is implemented by errors that know better than a stack trace
// where they came from, such as a child process exit.
type Detailer interface {
	FailureDetail() (where, traceback string)
}

// Frame is one call site of a trace.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("File %q, line %d, in %s", f.File, f.Line, shortFunc(f.Function))
}

func shortFunc(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Failure is a captured error return or panic.
type Failure struct {
	Err      error
	Panicked bool
	Value    any

	// Stack is innermost first. Empty when the failure carried no trace.
	Stack []Frame
	// Fallback locates the wrapped function and stands in for an empty Stack.
	Fallback Frame
}

// FromError captures a returned error, using the deepest stack trace
// recorded anywhere in its chain.
func FromError(err error, fallback Frame) *Failure {
	return &Failure{
		Err:      err,
		Stack:    errorStack(err),
		Fallback: fallback,
	}
}

// FromPanic captures a recovered panic value. It must be called directly
// from the deferred function that recovered.
func FromPanic(value any, fallback Frame) *Failure {
	f := &Failure{
		Panicked: true,
		Value:    value,
		Stack:    panicStack(),
		Fallback: fallback,
	}
	if err, ok := value.(error); ok {
		f.Err = err
	}
	return f
}

func errorStack(err error) []Frame {
	var trace *errors.ReportableStackTrace
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if st := errors.GetReportableStackTrace(e); st != nil && len(st.Frames) > 0 {
			trace = st
		}
	}
	if trace == nil {
		return nil
	}

	// Reportable traces are oldest first.
	stack := make([]Frame, 0, len(trace.Frames))
	for i := len(trace.Frames) - 1; i >= 0; i-- {
		sf := trace.Frames[i]
		fn := sf.Function
		if sf.Module != "" {
			fn = sf.Module + "." + fn
		}
		file := sf.AbsPath
		if file == "" {
			file = sf.Filename
		}
		stack = append(stack, Frame{Function: fn, File: file, Line: sf.Lineno})
	}
	return stack
}

func panicStack() []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []Frame
	panicking := false
	for {
		fr, more := frames.Next()
		switch {
		case fr.Function == "runtime.gopanic":
			panicking = true
		case panicking && !strings.HasPrefix(fr.Function, "runtime."):
			stack = append(stack, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more {
			break
		}
	}
	return stack
}

// Default is the built-in explainer: error type and message plus raw stack frames.
type Default struct{}

var _ Explainer = Default{}

// Explain implements Explainer.
func (Default) Explain(f *Failure) Explanation {
	msg := Message(f)

	var detailer Detailer
	if f.Err != nil && errors.As(f.Err, &detailer) {
		where, tb := detailer.FailureDetail()
		return Explanation{Message: msg, Where: where, Traceback: tb}
	}

	stack := f.Stack
	if len(stack) == 0 && f.Fallback.File != "" {
		stack = []Frame{f.Fallback}
	}

	var where string
	if len(stack) > 0 {
		where = stack[0].String()
	}

	var tb strings.Builder
	tb.WriteString("Traceback (most recent call last):\n")
	for i := len(stack) - 1; i >= 0; i-- {
		tb.WriteString("  ")
		tb.WriteString(stack[i].String())
		tb.WriteByte('\n')
	}
	tb.WriteString(summary(f))

	return Explanation{Message: msg, Where: where, Traceback: tb.String()}
}

// Message is the one-line description of a failure.
func Message(f *Failure) string {
	if f.Panicked {
		return strings.TrimSpace(fmt.Sprintf("panic: %v", f.Value))
	}
	if f.Err == nil {
		return ""
	}
	return strings.TrimSpace(f.Err.Error())
}

func summary(f *Failure) string {
	if f.Panicked {
		return fmt.Sprintf("panic (%T): %v", f.Value, f.Value)
	}
	if f.Err == nil {
		return ""
	}
	return fmt.Sprintf("%T: %s", errors.UnwrapAll(f.Err), f.Err.Error())
}
