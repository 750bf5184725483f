package format

import (
	"time"

	"github.com/lestrrat-go/strftime"
)

// Placeholder names understood by templates.
const (
	FieldTimestamp   = "timestamp"
	FieldFuncName    = "funcname"
	FieldFileName    = "filename"
	FieldMessage     = "message"
	FieldMachineName = "machine_name"
	FieldIPAddress   = "ip_address"
	FieldWhere       = "where"
	FieldArgs        = "args"
	FieldKwargs      = "kwargs"
	FieldTraceback   = "traceback"
)

// TimestampPattern renders as YYYY-MM-DD HH:MM:SS AM/PM.
const TimestampPattern = "%Y-%m-%d %I:%M:%S %p"

// ArgsWidth bounds the single-line rendering of args and kwargs.
const ArgsWidth = 35

var timestampFormat = mustStrftime(TimestampPattern)

func mustStrftime(pattern string) *strftime.Strftime {
	f, err := strftime.New(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// FormatTimestamp renders t in the notification timestamp format.
func FormatTimestamp(t time.Time) string {
	return timestampFormat.FormatString(t)
}

// Kind selects which fields a notification carries.
type Kind string

const (
	Exception  Kind = "exception"
	Completion Kind = "completion"
)

var (
	completionFields = []string{
		FieldTimestamp, FieldFuncName, FieldFileName, FieldMachineName,
		FieldIPAddress, FieldArgs, FieldKwargs,
	}
	exceptionFields = append(append([]string{}, completionFields...),
		FieldMessage, FieldWhere, FieldTraceback)
)

// Fields returns the placeholder names available to templates of this kind.
func (k Kind) Fields() []string {
	if k == Exception {
		return append([]string(nil), exceptionFields...)
	}
	return append([]string(nil), completionFields...)
}

func (k Kind) provides(name string) bool {
	for _, f := range k.Fields() {
		if f == name {
			return true
		}
	}
	return false
}

// DefaultTemplate returns the built-in template text for the kind.
func (k Kind) DefaultTemplate() string {
	if k == Exception {
		return DefaultExceptionTemplate
	}
	return DefaultCompletionTemplate
}

// Fields maps placeholder names to rendered values.
type Fields map[string]string

// KeywordArg is a named argument of a wrapped call.
type KeywordArg struct {
	Name  string
	Value any
}

// Record is everything captured about one wrapped invocation.
type Record struct {
	Timestamp   time.Time
	FuncName    string
	FileName    string
	MachineName string
	IPAddress   string
	Args        []any
	Kwargs      []KeywordArg

	// Failure detail, exception kind only.
	Message   string
	Where     string
	Traceback string
}

// Fields renders the record into the field set of the given kind.
func (r Record) Fields(kind Kind) Fields {
	fields := Fields{
		FieldTimestamp:   FormatTimestamp(r.Timestamp),
		FieldFuncName:    r.FuncName,
		FieldFileName:    r.FileName,
		FieldMachineName: r.MachineName,
		FieldIPAddress:   r.IPAddress,
		FieldArgs:        FormatArgs(r.Args, ArgsWidth),
		FieldKwargs:      FormatKwargs(r.Kwargs, ArgsWidth),
	}
	if kind == Exception {
		fields[FieldMessage] = r.Message
		fields[FieldWhere] = r.Where
		fields[FieldTraceback] = r.Traceback
	}
	return fields
}
