// Package http provides the HTTP API adapter for the policy server.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the policy server.
// Pass to components that need to record metrics.
type Metrics struct {
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	RuleUpdatesTotal   prometheus.Counter
	AuthFailuresTotal  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "evaluations_total",
				Help:      "Total rule evaluations",
			},
			[]string{"result"}, // result=allow/deny/error
		),
		EvaluationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "aegis",
				Name:      "evaluation_duration_seconds",
				Help:      "Rule evaluation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CacheHitsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "cache_hits_total",
				Help:      "Total decisions served from the result cache",
			},
		),
		RuleUpdatesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "rule_updates_total",
				Help:      "Total rule create/update/delete operations",
			},
		),
		AuthFailuresTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "auth_failures_total",
				Help:      "Total rejected API requests",
			},
		),
	}
}
