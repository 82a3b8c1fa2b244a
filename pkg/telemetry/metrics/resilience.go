package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"concordlabs/concord/pkg/config"
)

// ResilienceMetrics tracks circuit breakers, system health, recovery,
// and chaos injection.
//
// Metrics:
//   - concord_bus_breaker_state: per-service breaker state (0 closed, 1 half-open, 2 open)
//   - concord_bus_breaker_transitions_total: state transitions by service, from, to
//   - concord_bus_breaker_rejections_total: calls rejected by an open breaker
//   - concord_bus_health_score: aggregate system health score in [0,1]
//   - concord_bus_recovery_attempts_total: recovery attempts by service and outcome
//   - concord_bus_chaos_scenarios_active: currently active chaos scenarios
//   - concord_bus_chaos_injections_total: fault injections by scenario kind
type ResilienceMetrics struct {
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	breakerRejections  *prometheus.CounterVec
	healthScore        prometheus.Gauge
	recoveryAttempts   *prometheus.CounterVec
	chaosActive        prometheus.Gauge
	chaosInjections    *prometheus.CounterVec
}

// NewResilienceMetrics creates and registers resilience metrics with the
// provided registry.
func NewResilienceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ResilienceMetrics {
	rm := &ResilienceMetrics{
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_state",
				Help:      "Circuit breaker state per service (0 closed, 1 half-open, 2 open)",
			},
			[]string{"service"},
		),

		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"service", "from", "to"},
		),

		breakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_rejections_total",
				Help:      "Calls rejected by an open circuit breaker",
			},
			[]string{"service"},
		),

		healthScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "health_score",
				Help:      "Aggregate system health score in [0,1]",
			},
		),

		recoveryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "recovery_attempts_total",
				Help:      "Recovery attempts by service and outcome",
			},
			[]string{"service", "outcome"},
		),

		chaosActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "chaos_scenarios_active",
				Help:      "Currently active chaos scenarios",
			},
		),

		chaosInjections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "chaos_injections_total",
				Help:      "Fault injections by scenario kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		rm.breakerState,
		rm.breakerTransitions,
		rm.breakerRejections,
		rm.healthScore,
		rm.recoveryAttempts,
		rm.chaosActive,
		rm.chaosInjections,
	)

	return rm
}

// SetBreakerState updates the state gauge for one service.
func (rm *ResilienceMetrics) SetBreakerState(service string, state int) {
	if rm == nil {
		return
	}
	rm.breakerState.WithLabelValues(service).Set(float64(state))
}

// RecordBreakerTransition records a breaker state transition.
func (rm *ResilienceMetrics) RecordBreakerTransition(service, from, to string) {
	if rm == nil {
		return
	}
	rm.breakerTransitions.WithLabelValues(service, from, to).Inc()
}

// RecordBreakerRejection records a call rejected by an open breaker.
func (rm *ResilienceMetrics) RecordBreakerRejection(service string) {
	if rm == nil {
		return
	}
	rm.breakerRejections.WithLabelValues(service).Inc()
}

// SetHealthScore updates the aggregate health score gauge.
func (rm *ResilienceMetrics) SetHealthScore(score float64) {
	if rm == nil {
		return
	}
	rm.healthScore.Set(score)
}

// RecordRecoveryAttempt records one recovery attempt outcome.
func (rm *ResilienceMetrics) RecordRecoveryAttempt(service, outcome string) {
	if rm == nil {
		return
	}
	rm.recoveryAttempts.WithLabelValues(service, outcome).Inc()
}

// SetChaosActive updates the active scenario gauge.
func (rm *ResilienceMetrics) SetChaosActive(n int) {
	if rm == nil {
		return
	}
	rm.chaosActive.Set(float64(n))
}

// RecordChaosInjection records one injected fault.
func (rm *ResilienceMetrics) RecordChaosInjection(kind string) {
	if rm == nil {
		return
	}
	rm.chaosInjections.WithLabelValues(kind).Inc()
}
