// Package observability exposes prometheus metrics for the alert engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all engine metric collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal           prometheus.Counter
	TickDuration         prometheus.Histogram
	RulesEvaluated       prometheus.Counter
	EvaluationErrors     *prometheus.CounterVec
	TriggersOpened       prometheus.Counter
	TriggersResolved     prometheus.Counter
	NotificationsCreated *prometheus.CounterVec
	DeliveryFailures     *prometheus.CounterVec
	DigestsFlushed       prometheus.Counter
}

// NewMetrics creates the engine metric collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "windwatch_evaluation_ticks_total",
			Help: "Number of rule evaluation ticks run.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "windwatch_evaluation_tick_duration_seconds",
			Help:    "Duration of a full evaluation tick.",
			Buckets: prometheus.DefBuckets,
		}),
		RulesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "windwatch_rules_evaluated_total",
			Help: "Number of (rule, windfarm) evaluations performed.",
		}),
		EvaluationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "windwatch_evaluation_errors_total",
			Help: "Evaluation failures by reason.",
		}, []string{"reason"}),
		TriggersOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "windwatch_triggers_opened_total",
			Help: "Number of alert triggers opened.",
		}),
		TriggersResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "windwatch_triggers_resolved_total",
			Help: "Number of alert triggers auto-resolved.",
		}),
		NotificationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "windwatch_notifications_created_total",
			Help: "Notifications created by channel.",
		}, []string{"channel"}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "windwatch_delivery_failures_total",
			Help: "Abandoned delivery attempts by channel.",
		}, []string{"channel"}),
		DigestsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "windwatch_digests_flushed_total",
			Help: "Number of digest emails sent.",
		}),
	}
}

// Registry returns the prometheus registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
