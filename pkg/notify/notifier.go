// Package notify wraps functions so that their failure or completion is
// announced on a Microsoft Teams channel.
package notify

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/nakkulla/teams-notify/pkg/config"
	"github.com/nakkulla/teams-notify/pkg/explain"
	"github.com/nakkulla/teams-notify/pkg/format"
	"github.com/nakkulla/teams-notify/pkg/hostinfo"
	"github.com/nakkulla/teams-notify/pkg/metrics"
	"github.com/nakkulla/teams-notify/pkg/notification"
)

// Skip reasons reported to metrics
const (
	SkipInterrupted = "interrupted"
)

// FailureObserver is told about every notified failure, after the
// notification has been dispatched
type FailureObserver interface {
	ObserveFailure(ctx context.Context, rec format.Record, failure error)
}

// Notifier holds the configuration shared by the decorators it creates.
// It is read-only after New returns and safe for concurrent use
type Notifier struct {
	webhookURL string
	exception  *format.Template
	completion *format.Template

	sender    notification.Notifier
	explainer explain.Explainer
	host      hostinfo.Resolver
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
	observers []FailureObserver
	debugOut  io.Writer

	pool            *ants.Pool
	shutdownTimeout time.Duration

	exceptions *Decorator
	completes  *Decorator
}

// Option configures a Notifier
type Option func(*Notifier)

// WithSender replaces the dispatcher chosen from the configuration
func WithSender(sender notification.Notifier) Option {
	return func(n *Notifier) { n.sender = sender }
}

// WithExplainer replaces the traceback explainer
func WithExplainer(e explain.Explainer) Option {
	return func(n *Notifier) { n.explainer = e }
}

// WithHostResolver replaces the machine identity lookup
func WithHostResolver(r hostinfo.Resolver) Option {
	return func(n *Notifier) { n.host = r }
}

// WithClock replaces the timestamp source
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) { n.logger = logger }
}

// WithMetrics enables dispatch metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithObserver adds a failure observer
func WithObserver(o FailureObserver) Option {
	return func(n *Notifier) { n.observers = append(n.observers, o) }
}

// WithDebugOutput sets where debug mode prints messages (stdout by default)
func WithDebugOutput(w io.Writer) Option {
	return func(n *Notifier) { n.debugOut = w }
}

// New creates a Notifier from cfg. The webhook URL and both templates are
// validated here, so a misconfigured Notifier is never handed out
func New(cfg *config.Config, opts ...Option) (*Notifier, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	// The URL is checked first so a missing one surfaces as ErrWebhookURLRequired.
	if err := notification.ValidateWebhookURL(cfg.WebhookURL); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	n := &Notifier{
		webhookURL:      cfg.WebhookURL,
		explainer:       explain.Default{},
		host:            hostinfo.System{},
		now:             time.Now,
		logger:          zap.NewNop(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}

	var err error
	if n.exception, err = format.ParseFor(format.Exception, cfg.ExceptionTemplate); err != nil {
		return nil, errors.Wrap(err, "exception template")
	}
	if n.completion, err = format.ParseFor(format.Completion, cfg.CompletionTemplate); err != nil {
		return nil, errors.Wrap(err, "completion template")
	}

	if n.sender == nil {
		if cfg.Debug {
			n.sender = notification.NewStdoutNotifier(n.debugOut)
		} else {
			client, err := notification.NewTeamsClient(cfg.Timeout, cfg.CardFormat, n.logger)
			if err != nil {
				return nil, err
			}
			n.sender = client
		}
	}

	if cfg.AsyncDispatch {
		workers := cfg.AsyncWorkers
		if workers <= 0 {
			workers = 1
		}
		pool, err := ants.NewPool(workers,
			ants.WithNonblocking(true),
			ants.WithPanicHandler(func(v interface{}) {
				n.logger.Error("notification worker panicked", zap.Any("panic", v))
			}),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create dispatch pool")
		}
		n.pool = pool
	}

	n.exceptions = &Decorator{n: n, kind: format.Exception, webhookURL: n.webhookURL, tmpl: n.exception}
	n.completes = &Decorator{n: n, kind: format.Completion, webhookURL: n.webhookURL, tmpl: n.completion}
	return n, nil
}

// Close waits for queued notifications within the configured shutdown timeout
func (n *Notifier) Close() error {
	if n.pool == nil {
		return nil
	}
	timeout := n.shutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return n.pool.ReleaseTimeout(timeout)
}

// deliver sends note on the pool when async dispatch is enabled, falling
// back to sending inline if the pool refuses the task
func (n *Notifier) deliver(ctx context.Context, note notification.Notification) {
	if n.pool != nil {
		err := n.pool.Submit(func() { n.send(ctx, note) })
		if err == nil {
			return
		}
		n.logger.Warn("dispatch pool unavailable, sending inline", zap.Error(err))
	}
	n.send(ctx, note)
}

func (n *Notifier) send(ctx context.Context, note notification.Notification) {
	start := time.Now()
	err := n.sender.Send(ctx, note)
	n.metrics.ObserveDispatch(note.Kind, time.Since(start), err)
	if err != nil {
		n.logger.Error("failed to send notification",
			zap.String("kind", note.Kind),
			zap.Error(err))
		return
	}
	n.logger.Debug("notification sent", zap.String("kind", note.Kind))
}
