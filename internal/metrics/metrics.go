// Package metrics exposes Prometheus meters for the interaction pipeline and
// follow-up delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and the service meters.
type Metrics struct {
	Registry         *prometheus.Registry
	Interactions     *prometheus.CounterVec
	InteractionTime  *prometheus.HistogramVec
	Commands         *prometheus.CounterVec
	FollowUps        *prometheus.CounterVec
	FollowUpAttempts prometheus.Histogram
	QueueDepth       prometheus.Gauge
}

// New creates a custom registry with the standard slashgate meters plus Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	interactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slashgate_interactions_total",
		Help: "Inbound interactions by kind and outcome.",
	}, []string{"kind", "outcome"})

	interactionTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slashgate_interaction_duration_seconds",
		Help:    "Time from request read to response written.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"kind"})

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slashgate_commands_total",
		Help: "Routed commands by name. Unregistered names are counted as \"unknown\".",
	}, []string{"command"})

	followUps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slashgate_followups_total",
		Help: "Follow-up delivery results.",
	}, []string{"result"})

	attempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "slashgate_followup_attempts",
		Help:    "Attempts needed per finished follow-up.",
		Buckets: []float64{1, 2, 3, 4, 6, 8},
	})

	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slashgate_followup_queue_depth",
		Help: "Follow-ups waiting for delivery, due or not.",
	})

	reg.MustRegister(
		interactions, interactionTime, commands, followUps, attempts, depth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:         reg,
		Interactions:     interactions,
		InteractionTime:  interactionTime,
		Commands:         commands,
		FollowUps:        followUps,
		FollowUpAttempts: attempts,
		QueueDepth:       depth,
	}
}

// ObserveInteraction records one handled request.
func (m *Metrics) ObserveInteraction(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Interactions.WithLabelValues(kind, outcome).Inc()
	m.InteractionTime.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// CountCommand records a routed command.
func (m *Metrics) CountCommand(name string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(name).Inc()
}

// CountFollowUp records a delivery result: sent, retry or dead.
func (m *Metrics) CountFollowUp(result string, attempt int) {
	if m == nil {
		return
	}
	m.FollowUps.WithLabelValues(result).Inc()
	if result != "retry" {
		m.FollowUpAttempts.Observe(float64(attempt))
	}
}

// SetQueueDepth records how many follow-ups are waiting.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
