package format

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatArgs(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{"empty", nil, "()"},
		{"single", []any{1}, "(1,)"},
		{"pair", []any{1, 2}, "(1, 2)"},
		{"mixed scalars", []any{"a", true, 1.5, nil}, `("a", true, 1.5, nil)`},
		{
			"wraps past width",
			[]any{"a fairly long string value", "another long value"},
			"(\"a fairly long string value\",\n \"another long value\")",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatArgs(tt.args, ArgsWidth))
		})
	}
}

func TestFormatKwargs(t *testing.T) {
	assert.Equal(t, "{}", FormatKwargs(nil, ArgsWidth))
	assert.Equal(t, `{"b": 2}`, FormatKwargs([]KeywordArg{{Name: "b", Value: 2}}, ArgsWidth))

	// Order is kept as supplied, not sorted.
	got := FormatKwargs([]KeywordArg{
		{Name: "zeta", Value: "last letter"},
		{Name: "alpha", Value: "first letter"},
	}, ArgsWidth)
	assert.Equal(t, "{\"zeta\": \"last letter\",\n \"alpha\": \"first letter\"}", got)
}

func TestReprComposite(t *testing.T) {
	type point struct{ X, Y int }
	out := Repr(point{X: 1, Y: 2})
	assert.Contains(t, out, "X")
	assert.Contains(t, out, "Y")

	// Multi-line items stay aligned under the opening bracket.
	args := FormatArgs([]any{1, point{X: 3, Y: 4}}, 10)
	for _, line := range strings.Split(args, "\n")[1:] {
		assert.True(t, strings.HasPrefix(line, " "), "line %q not indented", line)
	}
}

type ptrErr struct{ msg string }

func (e *ptrErr) Error() string { return e.msg }

func TestReprTypedNil(t *testing.T) {
	var u *url.URL
	var e *ptrErr

	assert.NotPanics(t, func() { Repr(u) })
	assert.Equal(t, "<nil>", Repr(u))
	assert.Equal(t, `"<nil>"`, Repr(e))
	assert.Equal(t, `(<nil>, "<nil>")`, FormatArgs([]any{u, e}, ArgsWidth))

	// Non-nil values still go through their methods.
	assert.Equal(t, `"boom"`, Repr(&ptrErr{msg: "boom"}))
	assert.Equal(t, "https://example.com/x", Repr(&url.URL{Scheme: "https", Host: "example.com", Path: "/x"}))
}
