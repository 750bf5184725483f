package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nakkulla/teams-notify/pkg/config"
	"github.com/nakkulla/teams-notify/pkg/metrics"
	"github.com/nakkulla/teams-notify/pkg/monitor"
	"github.com/nakkulla/teams-notify/pkg/notify"
	"github.com/nakkulla/teams-notify/pkg/process"
	"github.com/nakkulla/teams-notify/pkg/sentry"
)

const metricsNamespace = "teams_notify"

// Runner runs the wrapped command
type Runner interface {
	Start(command string, args []string) error
	Wait() error
	ExitCode() int
	Interrupted() bool
	Stop() error
}

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config         *config.Config
	Logger         *zap.Logger
	Notifier       *notify.Notifier
	Registry       *prometheus.Registry
	Sentry         *sentry.Reporter
	OutputMonitor  *monitor.OutputMonitor
	ProcessManager Runner
}

// NewDependencies creates all dependencies with the given configuration.
// In quiet mode no notifier is built and the command simply runs.
func NewDependencies(cfg *config.Config, logger *zap.Logger, opts ...notify.Option) (*Dependencies, error) {
	deps := &Dependencies{
		Config:        cfg,
		Logger:        logger,
		Registry:      prometheus.NewRegistry(),
		OutputMonitor: monitor.NewOutputMonitor(cfg.OutputTailLines),
	}
	deps.ProcessManager = process.NewManager(deps.OutputMonitor, nil, logger.Named("process"))

	if cfg.Quiet {
		return deps, nil
	}

	m, err := metrics.New(metricsNamespace, deps.Registry)
	if err != nil {
		return nil, err
	}

	notifyOpts := []notify.Option{
		notify.WithLogger(logger.Named("notify")),
		notify.WithMetrics(m),
	}
	if cfg.SentryDSN != "" {
		reporter, err := sentry.New(&sentry.Config{
			DSN:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     "teams-notify@" + notify.Version,
		})
		if err != nil {
			return nil, err
		}
		deps.Sentry = reporter
		notifyOpts = append(notifyOpts, notify.WithObserver(reporter))
	}

	deps.Notifier, err = notify.New(cfg, append(notifyOpts, opts...)...)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// Close flushes pending notifications and metrics
func (d *Dependencies) Close() {
	if d.Notifier != nil {
		if err := d.Notifier.Close(); err != nil {
			d.Logger.Warn("pending notifications not delivered", zap.Error(err))
		}
	}
	if d.Sentry != nil {
		_ = d.Sentry.Close()
	}
	if path := d.Config.MetricsTextfile; path != "" && d.Notifier != nil {
		if err := prometheus.WriteToTextfile(path, d.Registry); err != nil {
			d.Logger.Warn("failed to write metrics", zap.String("path", path), zap.Error(err))
		}
	}
	_ = d.Logger.Sync()
}

// Application represents the main application
type Application struct {
	deps     *Dependencies
	exitCode int
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{deps: deps}
}

// Run runs command under the configured decorators and records its exit code
func (a *Application) Run(ctx context.Context, command string, args []string) error {
	run := a.runFunc(command)
	if a.deps.Notifier != nil {
		var err error
		if run, err = a.decorate(command, run); err != nil {
			return err
		}
	}

	callArgs := notify.Positional(toAny(args)...)
	if cwd, err := os.Getwd(); err == nil {
		callArgs = callArgs.With("cwd", cwd)
	}

	code, err := run(ctx, callArgs)
	a.exitCode = code
	return err
}

func (a *Application) runFunc(command string) notify.Func[int] {
	return func(ctx context.Context, args notify.Args) (int, error) {
		pm := a.deps.ProcessManager
		if err := pm.Start(command, stringArgs(args.Positional)); err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return 127, err
			}
			return 1, err
		}
		if err := pm.Wait(); err != nil {
			return 1, err
		}
		a.deps.OutputMonitor.Flush()

		code := pm.ExitCode()
		switch {
		case pm.Interrupted():
			return code, errors.Wrapf(notify.ErrInterrupted, "%s", command)
		case code != 0:
			return code, &ExitError{Path: command, Code: code, Output: a.deps.OutputMonitor.Tail()}
		}
		return 0, nil
	}
}

// decorate stacks the exception and completion decorators selected by notify_on
func (a *Application) decorate(command string, run notify.Func[int]) (notify.Func[int], error) {
	info := notify.FuncInfo{Name: filepath.Base(command), File: command}
	if path, err := exec.LookPath(command); err == nil {
		info.File = path
	}

	on := a.deps.Config.NotifyOn
	if on == config.NotifyOnFailure || on == config.NotifyOnBoth || on == "" {
		d, err := a.deps.Notifier.Exceptions()
		if err != nil {
			return nil, err
		}
		run = notify.WrapNamed(d, info, run)
	}
	if on == config.NotifyOnCompletion || on == config.NotifyOnBoth {
		d, err := a.deps.Notifier.Completion()
		if err != nil {
			return nil, err
		}
		run = notify.WrapNamed(d, info, run)
	}
	return run, nil
}

// Stop gracefully stops the application
func (a *Application) Stop() error {
	return a.deps.ProcessManager.Stop()
}

// SinceLastOutput reports how long the wrapped process has been silent
func (a *Application) SinceLastOutput() time.Duration {
	return time.Since(a.deps.OutputMonitor.LastOutputTime())
}

// ExitCode returns the exit code of the wrapped process
func (a *Application) ExitCode() int {
	return a.exitCode
}

func toAny(args []string) []any {
	out := make([]any, len(args))
	for i, s := range args {
		out[i] = s
	}
	return out
}

func stringArgs(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
