//go:build linux || darwin

package process

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureHandler struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *captureHandler) HandleData(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(data)
}

func (c *captureHandler) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func runShell(t *testing.T, script string) (*Manager, *captureHandler) {
	t.Helper()
	h := &captureHandler{}
	m := NewManager(h, nil, nil)
	m.SetIO(strings.NewReader(""), io.Discard)

	require.NoError(t, m.Start("/bin/sh", []string{"-c", script}))
	require.NoError(t, m.Wait())
	return m, h
}

func TestManagerExitCode(t *testing.T) {
	m, h := runShell(t, `echo one; echo two; exit 3`)

	assert.Equal(t, 3, m.ExitCode())
	assert.False(t, m.Interrupted())
	assert.Contains(t, h.String(), "two")
}

func TestManagerSuccess(t *testing.T) {
	m, _ := runShell(t, `exit 0`)
	assert.Equal(t, 0, m.ExitCode())
	assert.False(t, m.Interrupted())
}

func TestManagerMarksWrappedEnvironment(t *testing.T) {
	_, h := runShell(t, `echo "wrapped=$`+WrappedEnv+`"`)
	assert.Contains(t, h.String(), "wrapped=1")
}

func TestManagerChildInterrupted(t *testing.T) {
	m, _ := runShell(t, `kill -INT $$; sleep 1`)
	assert.Equal(t, 130, m.ExitCode())
	assert.True(t, m.Interrupted())
}

func TestManagerRefusesSelfWrap(t *testing.T) {
	t.Setenv(WrappedEnv, "1")

	m := NewManager(nil, nil, nil)
	err := m.Start("/bin/true", nil)
	assert.True(t, errors.Is(err, ErrAlreadyWrapped))
}

func TestManagerWaitBeforeStart(t *testing.T) {
	m := NewManager(nil, nil, nil)
	assert.True(t, errors.Is(m.Wait(), ErrNotStarted))
}
