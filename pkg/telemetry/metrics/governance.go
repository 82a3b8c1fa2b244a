package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"concordlabs/concord/pkg/config"
)

// GovernanceMetrics tracks validation, policy evaluation, and
// deliberation.
//
// Metrics:
//   - concord_bus_validations_total: validation runs by validator and outcome
//   - concord_bus_validation_cache_total: validation cache lookups by result
//   - concord_bus_policy_evaluations_total: policy decisions by adapter and decision
//   - concord_bus_policy_duration_seconds: policy evaluation latency
//   - concord_bus_policy_cache_total: decision cache lookups by tier and result
//   - concord_bus_impact_score: distribution of computed impact scores
//   - concord_bus_deliberations_pending: reviews awaiting resolution
//   - concord_bus_deliberations_total: resolved reviews by outcome
type GovernanceMetrics struct {
	validationsTotal  *prometheus.CounterVec
	validationCache   *prometheus.CounterVec
	policyEvaluations *prometheus.CounterVec
	policyDuration    *prometheus.HistogramVec
	policyCache       *prometheus.CounterVec
	impactScore       prometheus.Histogram
	pendingReviews    prometheus.Gauge
	deliberations     *prometheus.CounterVec
}

// NewGovernanceMetrics creates and registers governance metrics with the
// provided registry.
func NewGovernanceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GovernanceMetrics {
	gm := &GovernanceMetrics{
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validations_total",
				Help:      "Validation runs by validator and outcome",
			},
			[]string{"validator", "outcome"},
		),

		validationCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "validation_cache_total",
				Help:      "Validation cache lookups by result",
			},
			[]string{"result"},
		),

		policyEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_evaluations_total",
				Help:      "Policy decisions by adapter and decision",
			},
			[]string{"adapter", "decision"},
		),

		policyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_duration_seconds",
				Help:      "Policy evaluation latency in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"adapter"},
		),

		policyCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_cache_total",
				Help:      "Policy decision cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),

		impactScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "impact_score",
				Help:      "Distribution of computed impact scores",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),

		pendingReviews: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "deliberations_pending",
				Help:      "Reviews awaiting resolution",
			},
		),

		deliberations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "deliberations_total",
				Help:      "Resolved reviews by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		gm.validationsTotal,
		gm.validationCache,
		gm.policyEvaluations,
		gm.policyDuration,
		gm.policyCache,
		gm.impactScore,
		gm.pendingReviews,
		gm.deliberations,
	)

	return gm
}

// RecordValidation records one validation run.
func (gm *GovernanceMetrics) RecordValidation(validator, outcome string) {
	if gm == nil {
		return
	}
	gm.validationsTotal.WithLabelValues(validator, outcome).Inc()
}

// RecordValidationCache records a validation cache lookup.
func (gm *GovernanceMetrics) RecordValidationCache(result string) {
	if gm == nil {
		return
	}
	gm.validationCache.WithLabelValues(result).Inc()
}

// RecordPolicyEvaluation records a policy decision and its latency.
func (gm *GovernanceMetrics) RecordPolicyEvaluation(adapter, decision string, duration time.Duration) {
	if gm == nil {
		return
	}
	gm.policyEvaluations.WithLabelValues(adapter, decision).Inc()
	gm.policyDuration.WithLabelValues(adapter).Observe(duration.Seconds())
}

// RecordPolicyCache records a decision cache lookup for one tier
// ("memory" or "redis").
func (gm *GovernanceMetrics) RecordPolicyCache(tier, result string) {
	if gm == nil {
		return
	}
	gm.policyCache.WithLabelValues(tier, result).Inc()
}

// RecordImpactScore records a computed impact score.
func (gm *GovernanceMetrics) RecordImpactScore(score float64) {
	if gm == nil {
		return
	}
	gm.impactScore.Observe(score)
}

// SetPendingReviews updates the pending deliberation gauge.
func (gm *GovernanceMetrics) SetPendingReviews(n int) {
	if gm == nil {
		return
	}
	gm.pendingReviews.Set(float64(n))
}

// RecordDeliberation records a resolved review.
func (gm *GovernanceMetrics) RecordDeliberation(outcome string) {
	if gm == nil {
		return
	}
	gm.deliberations.WithLabelValues(outcome).Inc()
}
