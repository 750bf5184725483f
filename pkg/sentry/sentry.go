// Package sentry forwards wrapped-function failures to Sentry alongside the
// Teams notification.
package sentry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"

	"github.com/nakkulla/teams-notify/pkg/format"
)

var (
	// ErrInvalidDSN is returned when no DSN is configured
	ErrInvalidDSN = errors.New("sentry: dsn is required")
)

// Config configures the Sentry client
type Config struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	Release     string `yaml:"release"`
	ServerName  string `yaml:"server_name"`
	Debug       bool   `yaml:"debug"`

	// FlushTimeout bounds Close
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// Option adjusts the SDK options before the client is built
type Option func(*sentry.ClientOptions)

// Reporter captures failures on an isolated Sentry hub
type Reporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// New creates a Reporter
func New(cfg *Config, opts ...Option) (*Reporter, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, ErrInvalidDSN
	}

	clientOpts := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	}
	for _, opt := range opts {
		opt(&clientOpts)
	}

	client, err := sentry.NewClient(clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sentry client")
	}

	flush := cfg.FlushTimeout
	if flush <= 0 {
		flush = 2 * time.Second
	}

	return &Reporter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		flushTimeout: flush,
	}, nil
}

// ObserveFailure captures failure with the call's identity attached
func (r *Reporter) ObserveFailure(_ context.Context, rec format.Record, failure error) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("funcname", rec.FuncName)
		scope.SetTag("machine_name", rec.MachineName)
		scope.SetContext("call", sentry.Context{
			"filename":   rec.FileName,
			"ip_address": rec.IPAddress,
			"args":       format.FormatArgs(rec.Args, format.ArgsWidth),
			"kwargs":     format.FormatKwargs(rec.Kwargs, format.ArgsWidth),
			"where":      rec.Where,
		})
		r.hub.CaptureException(failure)
	})
}

// Close flushes buffered events
func (r *Reporter) Close() error {
	r.hub.Flush(r.flushTimeout)
	return nil
}
