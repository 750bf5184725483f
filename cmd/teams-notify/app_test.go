package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nakkulla/teams-notify/pkg/config"
	"github.com/nakkulla/teams-notify/pkg/hostinfo"
	"github.com/nakkulla/teams-notify/pkg/monitor"
	"github.com/nakkulla/teams-notify/pkg/notification"
	"github.com/nakkulla/teams-notify/pkg/notify"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (s *recordingSender) Send(_ context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// fakeRunner plays back a canned run
type fakeRunner struct {
	output      string
	exitCode    int
	interrupted bool
	startErr    error

	monitor *monitor.OutputMonitor
	command string
	args    []string
}

func (f *fakeRunner) Start(command string, args []string) error {
	f.command, f.args = command, args
	if f.startErr != nil {
		return f.startErr
	}
	f.monitor.HandleData([]byte(f.output))
	return nil
}

func (f *fakeRunner) Wait() error       { return nil }
func (f *fakeRunner) ExitCode() int     { return f.exitCode }
func (f *fakeRunner) Interrupted() bool { return f.interrupted }
func (f *fakeRunner) Stop() error       { return nil }

func newTestApp(t *testing.T, on string, runner *fakeRunner) (*Application, *recordingSender) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WebhookURL = "https://example.webhook.office.com/hook"
	cfg.NotifyOn = on
	cfg.OutputTailLines = 2

	sender := &recordingSender{}
	deps, err := NewDependencies(cfg, zap.NewNop(),
		notify.WithSender(sender),
		notify.WithHostResolver(hostinfo.Static{MachineName: "ci-1", IPAddress: "10.1.2.3"}),
	)
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	runner.monitor = deps.OutputMonitor
	deps.ProcessManager = runner
	return NewApplication(deps), sender
}

func TestRunNotifiesNonZeroExit(t *testing.T) {
	runner := &fakeRunner{output: "compiling\nlinking\nerror: undefined symbol\n", exitCode: 3}
	app, sender := newTestApp(t, config.NotifyOnFailure, runner)

	err := app.Run(context.Background(), "/opt/tools/build", []string{"--release"})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, 3, app.ExitCode())
	assert.Equal(t, []string{"--release"}, runner.args)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0].Message
	assert.Contains(t, msg, "**build()**")
	assert.Contains(t, msg, "```command \"/opt/tools/build\" exited with status 3```")
	assert.Contains(t, msg, "linking\nerror: undefined symbol")
	assert.NotContains(t, msg, "compiling")
	assert.Contains(t, msg, `args: ("--release",)`)
	assert.Contains(t, msg, `"cwd": `)
	assert.Contains(t, msg, "Node: ci-1 (10.1.2.3)")
}

func TestRunInterruptedIsSilent(t *testing.T) {
	runner := &fakeRunner{exitCode: 130, interrupted: true}
	app, sender := newTestApp(t, config.NotifyOnBoth, runner)

	err := app.Run(context.Background(), "sleep", []string{"60"})
	assert.True(t, errors.Is(err, notify.ErrInterrupted))
	assert.Equal(t, 130, app.ExitCode())
	assert.Empty(t, sender.sent)
}

func TestSinceLastOutput(t *testing.T) {
	runner := &fakeRunner{output: "tick\n"}
	app, _ := newTestApp(t, config.NotifyOnCompletion, runner)

	time.Sleep(20 * time.Millisecond)
	stale := app.SinceLastOutput()
	assert.GreaterOrEqual(t, stale, 20*time.Millisecond)

	require.NoError(t, app.Run(context.Background(), "true", nil))
	assert.Less(t, app.SinceLastOutput(), stale)
}

func TestRunCompletion(t *testing.T) {
	tests := []struct {
		on    string
		sends int
	}{
		{config.NotifyOnFailure, 0},
		{config.NotifyOnCompletion, 1},
		{config.NotifyOnBoth, 1},
	}

	for _, tt := range tests {
		t.Run(tt.on, func(t *testing.T) {
			app, sender := newTestApp(t, tt.on, &fakeRunner{output: "ok\n"})

			require.NoError(t, app.Run(context.Background(), "backup", nil))
			assert.Equal(t, 0, app.ExitCode())
			require.Len(t, sender.sent, tt.sends)
			if tt.sends > 0 {
				assert.Contains(t, sender.sent[0].Message, "Function completed: **backup()**")
			}
		})
	}
}

func TestRunCompletionSilentOnFailure(t *testing.T) {
	app, sender := newTestApp(t, config.NotifyOnCompletion, &fakeRunner{exitCode: 1})

	err := app.Run(context.Background(), "backup", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, app.ExitCode())
	assert.Empty(t, sender.sent)
}

func TestRunStartFailure(t *testing.T) {
	runner := &fakeRunner{startErr: errors.New("no such file")}
	app, sender := newTestApp(t, config.NotifyOnFailure, runner)

	err := app.Run(context.Background(), "missing-tool", nil)
	assert.Error(t, err)
	assert.Equal(t, 1, app.ExitCode())
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Message, "**no such file**")
}

func TestQuietRunsWithoutNotifier(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Quiet = true

	deps, err := NewDependencies(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, deps.Notifier)

	runner := &fakeRunner{exitCode: 4, monitor: deps.OutputMonitor}
	deps.ProcessManager = runner

	app := NewApplication(deps)
	err = app.Run(context.Background(), "job", nil)
	var exitErr *ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 4, app.ExitCode())
}

func TestExitErrorDetail(t *testing.T) {
	e := &ExitError{Path: "/bin/job", Code: 2}
	where, tb := e.FailureDetail()
	assert.Equal(t, `command "/bin/job" exited with status 2`, where)
	assert.Equal(t, "(no output)", tb)
}

func TestFlagOverrides(t *testing.T) {
	var opts options
	fs := newFlagSet(&opts)
	require.NoError(t, fs.Parse([]string{
		"--webhook-url", "https://flag.example.com/hook",
		"--on", "both",
		"--debug",
		"make", "--on", "test",
	}))

	assert.Equal(t, []string{"make", "--on", "test"}, fs.Args())

	cfg := config.DefaultConfig()
	cfg.CardFormat = config.CardConnector
	opts.overrides(fs)(cfg)
	assert.Equal(t, "https://flag.example.com/hook", cfg.WebhookURL)
	assert.Equal(t, config.NotifyOnBoth, cfg.NotifyOn)
	assert.True(t, cfg.Debug)
	// untouched flags leave the loaded value alone
	assert.Equal(t, config.CardConnector, cfg.CardFormat)
}

func TestRunVersionAndUsage(t *testing.T) {
	assert.Equal(t, 0, run([]string{"--version"}))
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"--no-such-flag"}))
}

func TestUsageMentionsCommand(t *testing.T) {
	var opts options
	fs := newFlagSet(&opts)
	assert.True(t, strings.Contains(fs.FlagUsages(), "--webhook-url"))
}

func TestCloseWritesMetricsTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams_notify.prom")

	cfg := config.DefaultConfig()
	cfg.WebhookURL = "https://example.webhook.office.com/hook"
	cfg.MetricsTextfile = path

	deps, err := NewDependencies(cfg, zap.NewNop(),
		notify.WithSender(&recordingSender{}),
		notify.WithHostResolver(hostinfo.Static{MachineName: "ci-1", IPAddress: "10.1.2.3"}),
	)
	require.NoError(t, err)
	runner := &fakeRunner{exitCode: 2, monitor: deps.OutputMonitor}
	deps.ProcessManager = runner

	_ = NewApplication(deps).Run(context.Background(), "job", nil)
	deps.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `teams_notify_teams_notifications_total{kind="exception",result="sent"} 1`)
}
