// Package metrics exposes generation pass counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements services.GenerationMetrics.
type Metrics struct {
	// Registry owns these metrics. A private registry keeps tests from
	// colliding on duplicate collectors.
	Registry *prometheus.Registry

	passes          *prometheus.CounterVec
	passDuration    prometheus.Histogram
	generated       prometheus.Counter
	ruleFailures    *prometheus.CounterVec
	publishFailures prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recurring_generation_passes_total",
				Help: "Generation passes by outcome.",
			},
			[]string{"status"},
		),
		passDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recurring_generation_pass_duration_seconds",
				Help:    "Duration of generation passes.",
				Buckets: prometheus.DefBuckets,
			},
		),
		generated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "recurring_transactions_generated_total",
				Help: "Transactions created from recurring rules.",
			},
		),
		ruleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recurring_rule_failures_total",
				Help: "Rules stopped during a pass, by failing collaborator.",
			},
			[]string{"kind"},
		),
		publishFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "recurring_events_publish_failures_total",
				Help: "Transaction events that could not be published.",
			},
		),
	}
}

func (m *Metrics) PassCompleted(status string, duration time.Duration) {
	m.passes.WithLabelValues(status).Inc()
	m.passDuration.Observe(duration.Seconds())
}

func (m *Metrics) TransactionGenerated() {
	m.generated.Inc()
}

func (m *Metrics) RuleFailed(kind string) {
	m.ruleFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) PublishFailed() {
	m.publishFailures.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
