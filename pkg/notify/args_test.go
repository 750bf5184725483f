package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nakkulla/teams-notify/pkg/format"
)

type job struct{}

func (job) Run() {}

func TestInfoOf(t *testing.T) {
	info := InfoOf(f)
	assert.Equal(t, "f", info.Name)
	assert.Contains(t, info.File, "notify_test.go")
	assert.Positive(t, info.Line)

	assert.Equal(t, "job.Run", InfoOf(job{}.Run).Name)
	assert.Equal(t, "unknown", InfoOf(nil).Name)
	assert.Equal(t, "unknown", InfoOf(42).Name)
}

func TestShortName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"main.main", "main"},
		{"github.com/acme/app/jobs.Nightly", "Nightly"},
		{"github.com/acme/app/jobs.(*Runner).Run-fm", "(*Runner).Run"},
		{"github.com/acme/app/jobs.TestX.func1", "TestX.func1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortName(tt.in), tt.in)
	}
}

func TestArgsWith(t *testing.T) {
	base := Positional(1, "two")
	a := base.With("b", 2)
	b := a.With("c", 3)

	assert.Empty(t, base.Keyword)
	assert.Equal(t, []format.KeywordArg{{Name: "b", Value: 2}}, a.Keyword)
	assert.Equal(t, []format.KeywordArg{{Name: "b", Value: 2}, {Name: "c", Value: 3}}, b.Keyword)
	assert.Equal(t, []any{1, "two"}, b.Positional)
}
