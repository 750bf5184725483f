package notify

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/nakkulla/teams-notify/pkg/explain"
	"github.com/nakkulla/teams-notify/pkg/format"
	"github.com/nakkulla/teams-notify/pkg/notification"
)

// Decorator is a configured exception or completion decorator. Apply it
// with Wrap or WrapNamed
type Decorator struct {
	n          *Notifier
	kind       format.Kind
	webhookURL string
	tmpl       *format.Template
}

type decoratorSettings struct {
	webhookURL string
	template   string
}

// DecoratorOption overrides a Notifier setting for one decorator
type DecoratorOption func(*decoratorSettings)

// WithWebhookURL posts this decorator's notifications to url
func WithWebhookURL(url string) DecoratorOption {
	return func(s *decoratorSettings) { s.webhookURL = url }
}

// WithTemplate renders this decorator's notifications with text
func WithTemplate(text string) DecoratorOption {
	return func(s *decoratorSettings) { s.template = text }
}

// Exceptions returns a decorator that notifies when the wrapped function fails
func (n *Notifier) Exceptions(opts ...DecoratorOption) (*Decorator, error) {
	return n.decorator(format.Exception, n.exception, opts)
}

// Completion returns a decorator that notifies when the wrapped function succeeds
func (n *Notifier) Completion(opts ...DecoratorOption) (*Decorator, error) {
	return n.decorator(format.Completion, n.completion, opts)
}

func (n *Notifier) decorator(kind format.Kind, tmpl *format.Template, opts []DecoratorOption) (*Decorator, error) {
	s := decoratorSettings{webhookURL: n.webhookURL}
	for _, opt := range opts {
		opt(&s)
	}
	if err := notification.ValidateWebhookURL(s.webhookURL); err != nil {
		return nil, err
	}
	if s.template != "" {
		var err error
		if tmpl, err = format.ParseFor(kind, s.template); err != nil {
			return nil, errors.Wrapf(err, "%s template", kind)
		}
	}
	return &Decorator{n: n, kind: kind, webhookURL: s.webhookURL, tmpl: tmpl}, nil
}

// Kind reports which outcome the decorator announces
func (d *Decorator) Kind() format.Kind { return d.kind }

// NotifyExceptions wraps fn with n's default exception decorator
func NotifyExceptions[T any](n *Notifier, fn Func[T]) Func[T] {
	return WrapNamed(n.exceptions, InfoOf(fn), fn)
}

// NotifyComplete wraps fn with n's default completion decorator
func NotifyComplete[T any](n *Notifier, fn Func[T]) Func[T] {
	return WrapNamed(n.completes, InfoOf(fn), fn)
}

// Wrap applies d to fn, naming it after fn itself
func Wrap[T any](d *Decorator, fn Func[T]) Func[T] {
	return WrapNamed(d, InfoOf(fn), fn)
}

// WrapNamed applies d to fn, reporting it as info
func WrapNamed[T any](d *Decorator, info FuncInfo, fn Func[T]) Func[T] {
	if d.kind == format.Completion {
		return func(ctx context.Context, args Args) (T, error) {
			result, err := fn(ctx, args)
			if err == nil {
				d.guard(info, "notification", func() {
					d.dispatch(ctx, d.record(ctx, info, args))
				})
			}
			return result, err
		}
	}

	return func(ctx context.Context, args Args) (result T, err error) {
		defer func() {
			if r := recover(); r != nil {
				d.failed(ctx, info, args, explain.FromPanic(r, info.frame()))
				panic(r)
			}
		}()

		result, err = fn(ctx, args)
		if err == nil {
			return result, nil
		}
		if interrupted(err) {
			d.n.metrics.ObserveSkip(string(d.kind), SkipInterrupted)
			d.n.logger.Info("wrapped call interrupted, not notifying",
				zap.String("funcname", info.Name))
			return result, err
		}
		d.failed(ctx, info, args, explain.FromError(err, info.frame()))
		return result, err
	}
}

func (d *Decorator) failed(ctx context.Context, info FuncInfo, args Args, f *explain.Failure) {
	var rec format.Record
	d.guard(info, "notification", func() {
		rec = d.record(ctx, info, args)
		ex := d.n.explainer.Explain(f)
		rec.Message = ex.Message
		rec.Where = ex.Where
		rec.Traceback = ex.Traceback

		d.dispatch(ctx, rec)
	})

	cause := f.Err
	if cause == nil {
		cause = errors.NewWithDepth(1, fmt.Sprintf("panic: %v", f.Value))
	}
	for _, o := range d.n.observers {
		d.guard(info, "observer", func() { o.ObserveFailure(ctx, rec, cause) })
	}
}

// guard runs fn, recording any panic it raises as a failed dispatch
func (d *Decorator) guard(info FuncInfo, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf("%s panicked: %v", stage, r)
			d.n.metrics.ObserveDispatch(string(d.kind), 0, err)
			d.n.logger.Error("notification side channel panicked",
				zap.String("kind", string(d.kind)),
				zap.String("funcname", info.Name),
				zap.String("stage", stage),
				zap.Error(err))
		}
	}()
	fn()
}

func (d *Decorator) record(ctx context.Context, info FuncInfo, args Args) format.Record {
	id := d.n.host.Resolve(context.WithoutCancel(ctx))
	return format.Record{
		Timestamp:   d.n.now(),
		FuncName:    info.Name,
		FileName:    info.File,
		MachineName: id.MachineName,
		IPAddress:   id.IPAddress,
		Args:        args.Positional,
		Kwargs:      args.Keyword,
	}
}

// dispatch renders rec and hands it to the sender. The send is detached from
// ctx so a cancelled or expired caller still gets its failure reported
func (d *Decorator) dispatch(ctx context.Context, rec format.Record) {
	msg, err := d.tmpl.Render(rec.Fields(d.kind))
	if err != nil {
		d.n.metrics.ObserveDispatch(string(d.kind), 0, err)
		d.n.logger.Error("failed to render notification",
			zap.String("kind", string(d.kind)),
			zap.Error(err))
		return
	}
	d.n.deliver(context.WithoutCancel(ctx), notification.Notification{
		WebhookURL: d.webhookURL,
		Message:    msg,
		Kind:       string(d.kind),
		Time:       rec.Timestamp,
	})
}
