// Package metrics exposes Prometheus collectors for permission decisions
// and their enforcement.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts decision engine answers by outcome and reason
	// (superuser, grant, no_grant, cache).
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlguard_decisions_total",
			Help: "Total number of permission decisions",
		},
		[]string{"decision", "reason"},
	)

	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "urlguard_decision_duration_seconds",
			Help:    "Duration of permission decisions in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"cache_hit"},
	)

	// StoreErrorsTotal counts lookups that failed against the permission store.
	StoreErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urlguard_store_errors_total",
			Help: "Total number of permission store lookup failures",
		},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urlguard_cache_hits_total",
			Help: "Total number of decision cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urlguard_cache_misses_total",
			Help: "Total number of decision cache misses",
		},
	)

	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urlguard_cache_invalidations_total",
			Help: "Total number of decision cache invalidations",
		},
	)

	// CacheBypassesTotal counts decisions that skipped the cache because an
	// earlier invalidation failed and a retry failed too.
	CacheBypassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urlguard_cache_bypasses_total",
			Help: "Total number of decisions that bypassed a stale decision cache",
		},
	)

	// EnforcementTotal counts middleware outcomes by the gate that decided.
	EnforcementTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlguard_enforcement_total",
			Help: "Total number of enforced requests by deciding gate and outcome",
		},
		[]string{"gate", "outcome"},
	)
)

// RecordDecision records one engine decision.
func RecordDecision(allowed bool, reason string, cacheHit bool, d time.Duration) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	DecisionsTotal.WithLabelValues(decision, reason).Inc()
	DecisionDuration.WithLabelValues(hit).Observe(d.Seconds())
}

// RecordEnforcement records which middleware gate produced the outcome.
func RecordEnforcement(gate, outcome string) {
	EnforcementTotal.WithLabelValues(gate, outcome).Inc()
}
