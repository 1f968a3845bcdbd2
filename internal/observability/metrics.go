// Package observability serves prometheus metrics, a health endpoint and
// optional pprof handlers, and keeps the counters fed from the event bus.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rotabot/internal/eventbus"
	"rotabot/internal/notifier"
)

const metricsNamespace = "rotabot"

type Metrics struct {
	reg *prometheus.Registry

	Posts         *prometheus.CounterVec
	Announcements *prometheus.CounterVec
	Replies       prometheus.Counter
	BusMissed     prometheus.CounterFunc
}

// NewMetrics registers every collector on a private registry together with
// the Go and process collectors. missed reports events lost by slow bus
// subscribers; it may be nil.
func NewMetrics(missed func() uint64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	m := &Metrics{reg: reg}

	m.Posts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "posts_total",
			Help:      "Outbound jobs by kind and result (queued, sent, failed, deduped, dropped)",
		},
		[]string{"kind", "result"},
	)
	m.Announcements = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "announcements_total",
			Help:      "Announcer runs by feature and result",
		},
		[]string{"feature", "result"},
	)
	m.Replies = factory.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "replies_total",
		Help:      "Replies produced by the responder",
	})
	if missed != nil {
		m.BusMissed = factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "eventbus_missed_total",
			Help:      "Events dropped because a subscriber was full",
		}, func() float64 { return float64(missed()) })
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe updates counters for one event.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.PostQueued, eventbus.PostSent, eventbus.PostFailed, eventbus.PostDeduped, eventbus.PostDropped:
		kind := "unknown"
		if pe, ok := e.Data.(notifier.PostEvent); ok {
			kind = string(pe.Kind)
		}
		m.Posts.WithLabelValues(kind, e.Type[len("post."):]).Inc()
	case eventbus.AnnounceRun, eventbus.AnnounceError:
		feature := "unknown"
		if ae, ok := e.Data.(eventbus.AnnounceEvent); ok {
			feature = ae.Feature
		}
		result := "ok"
		if e.Type == eventbus.AnnounceError {
			result = "error"
		}
		m.Announcements.WithLabelValues(feature, result).Inc()
	case eventbus.ReplySent:
		m.Replies.Inc()
	}
}

// Consume feeds counters from bus until ctx ends.
func (m *Metrics) Consume(ctx context.Context, bus eventbus.Bus) error {
	ch, unsubscribe := bus.Subscribe(256, "post.", "announce.", "reply.")
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}
