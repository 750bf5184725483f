package format

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kr/pretty"
)

// FormatArgs renders positional arguments as a tuple, one element per line
// when the single-line form is wider than width.
func FormatArgs(args []any, width int) string {
	items := make([]string, len(args))
	for i, a := range args {
		items[i] = Repr(a)
	}
	switch len(items) {
	case 0:
		return "()"
	case 1:
		return "(" + indent(items[0]) + ",)"
	}
	return wrap("(", ")", items, width)
}

// FormatKwargs renders keyword arguments as a mapping in the order supplied.
func FormatKwargs(kwargs []KeywordArg, width int) string {
	if len(kwargs) == 0 {
		return "{}"
	}
	items := make([]string, len(kwargs))
	for i, kw := range kwargs {
		items[i] = strconv.Quote(kw.Name) + ": " + Repr(kw.Value)
	}
	return wrap("{", "}", items, width)
}

func wrap(open, closing string, items []string, width int) string {
	line := open + strings.Join(items, ", ") + closing
	if utf8.RuneCountInString(line) <= width && !strings.Contains(line, "\n") {
		return line
	}
	for i := range items {
		items[i] = indent(items[i])
	}
	return open + strings.Join(items, ",\n ") + closing
}

// indent shifts continuation lines of a multi-line item under the opening bracket.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n ")
}

// Repr renders a single value: scalars as literals, composites via kr/pretty.
func Repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return fmt.Sprint(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case error:
		// fmt recovers a nil-receiver panic and prints "<nil>".
		return strconv.Quote(fmt.Sprint(x))
	case fmt.Stringer:
		return fmt.Sprint(x)
	}
	return pretty.Sprint(v)
}
