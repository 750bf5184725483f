// Package metrics exposes Prometheus instruments for notification dispatch.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

// Metrics holds the dispatch instruments.
type Metrics struct {
	// NotificationsTotal counts dispatch attempts by kind and result
	NotificationsTotal *prometheus.CounterVec
	// SkippedTotal counts notifications not attempted, by kind and reason
	SkippedTotal *prometheus.CounterVec
	// DispatchDuration measures webhook POST latency by kind
	DispatchDuration *prometheus.HistogramVec
}

// New creates the instruments under namespace and registers them with reg.
// A nil reg leaves them unregistered.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "teams",
			Name:      "notifications_total",
			Help:      "Notifications dispatched to Teams, by kind and result.",
		}, []string{"kind", "result"}),
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "teams",
			Name:      "notifications_skipped_total",
			Help:      "Notifications not sent, by kind and reason.",
		}, []string{"kind", "reason"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "teams",
			Name:      "dispatch_duration_seconds",
			Help:      "Latency of webhook dispatch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.NotificationsTotal, m.SkippedTotal, m.DispatchDuration} {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrap(err, "failed to register metric")
			}
		}
	}
	return m, nil
}

// ObserveDispatch records one dispatch attempt. Safe on a nil receiver.
func (m *Metrics) ObserveDispatch(kind string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := ResultSent
	if err != nil {
		result = ResultFailed
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
	m.DispatchDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// ObserveSkip records a notification that was deliberately not sent. Safe on a nil receiver.
func (m *Metrics) ObserveSkip(kind, reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(kind, reason).Inc()
}
