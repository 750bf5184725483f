package notify

import (
	"context"
	"reflect"
	"runtime"
	"strings"

	"github.com/nakkulla/teams-notify/pkg/explain"
	"github.com/nakkulla/teams-notify/pkg/format"
)

// Func is the shape of a function the decorators wrap
type Func[T any] func(ctx context.Context, args Args) (T, error)

// Args are the arguments of one wrapped call, as shown in notifications.
// Keyword arguments keep the order they were given in
type Args struct {
	Positional []any
	Keyword    []format.KeywordArg
}

// Positional returns Args holding values as positional arguments
func Positional(values ...any) Args {
	return Args{Positional: values}
}

// With returns a copy of a with a keyword argument appended
func (a Args) With(name string, value any) Args {
	kw := make([]format.KeywordArg, len(a.Keyword), len(a.Keyword)+1)
	copy(kw, a.Keyword)
	a.Keyword = append(kw, format.KeywordArg{Name: name, Value: value})
	return a
}

// FuncInfo identifies a wrapped function
type FuncInfo struct {
	Name string
	File string
	Line int
}

// InfoOf derives the name and source location of fn. The package path is
// dropped from the name, so a function f in any package is reported as "f"
func InfoOf(fn any) FuncInfo {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return FuncInfo{Name: "unknown"}
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return FuncInfo{Name: "unknown"}
	}
	file, line := rf.FileLine(rf.Entry())
	return FuncInfo{Name: shortName(rf.Name()), File: file, Line: line}
}

func shortName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	// method values
	return strings.TrimSuffix(name, "-fm")
}

func (fi FuncInfo) frame() explain.Frame {
	return explain.Frame{Function: fi.Name, File: fi.File, Line: fi.Line}
}
