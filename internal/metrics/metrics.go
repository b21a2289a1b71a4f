// Package metrics exports schedule activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"konan/internal/schedule"
)

const namespace = "konan"

// Metrics owns a private registry so tests and multiple sessions in one
// process never collide on the global default registry.
type Metrics struct {
	reg      *prometheus.Registry
	fired    *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  *prometheus.GaugeVec
	sessions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_fired_total",
			Help:      "Scheduled actions that completed without error.",
		}, []string{"strategy", "action"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_failed_total",
			Help:      "Scheduled actions that returned an error and aborted the session.",
		}, []string{"strategy", "action"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Wall time spent inside scheduled actions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy", "action"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_pending",
			Help:      "Entries still waiting to fire in the current session.",
		}, []string{"strategy"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished sessions by outcome.",
		}, []string{"strategy", "outcome"}),
	}
	m.reg.MustRegister(
		m.fired, m.failed, m.duration, m.pending, m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe records one engine observation for strategy.
func (m *Metrics) Observe(strategy string, o schedule.Observation) {
	m.pending.WithLabelValues(strategy).Set(float64(o.Pending))
	switch o.Outcome {
	case schedule.OutcomeFired:
		m.fired.WithLabelValues(strategy, o.Name).Inc()
		m.duration.WithLabelValues(strategy, o.Name).Observe(o.Took.Seconds())
	case schedule.OutcomeFailed:
		m.failed.WithLabelValues(strategy, o.Name).Inc()
		m.duration.WithLabelValues(strategy, o.Name).Observe(o.Took.Seconds())
		m.sessions.WithLabelValues(strategy, string(o.Outcome)).Inc()
	case schedule.OutcomeStopped, schedule.OutcomeCancelled:
		m.sessions.WithLabelValues(strategy, string(o.Outcome)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
