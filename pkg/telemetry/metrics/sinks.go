package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"concordlabs/concord/pkg/config"
)

// SinkMetrics tracks the async audit and metering sinks.
//
// Metrics:
//   - concord_bus_audit_entries_total: audit entries recorded by event type
//   - concord_bus_audit_dropped_total: audit entries dropped on overflow
//   - concord_bus_audit_queue_depth: audit entries awaiting the writer
//   - concord_bus_metering_events_total: metering events recorded
//   - concord_bus_metering_dropped_total: metering events dropped on overflow
type SinkMetrics struct {
	auditEntries   *prometheus.CounterVec
	auditDropped   prometheus.Counter
	auditQueue     prometheus.Gauge
	meteringEvents prometheus.Counter
	meteringDrops  prometheus.Counter
}

// NewSinkMetrics creates and registers sink metrics with the provided
// registry.
func NewSinkMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SinkMetrics {
	sm := &SinkMetrics{
		auditEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_entries_total",
				Help:      "Audit entries recorded by event type",
			},
			[]string{"event"},
		),

		auditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_dropped_total",
				Help:      "Audit entries dropped because the queue was full",
			},
		),

		auditQueue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_queue_depth",
				Help:      "Audit entries awaiting the background writer",
			},
		),

		meteringEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "metering_events_total",
				Help:      "Metering events recorded",
			},
		),

		meteringDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "metering_dropped_total",
				Help:      "Metering events dropped because the queue was full",
			},
		),
	}

	registry.MustRegister(
		sm.auditEntries,
		sm.auditDropped,
		sm.auditQueue,
		sm.meteringEvents,
		sm.meteringDrops,
	)

	return sm
}

// RecordAuditEntry records one audit entry.
func (sm *SinkMetrics) RecordAuditEntry(event string) {
	if sm == nil {
		return
	}
	sm.auditEntries.WithLabelValues(event).Inc()
}

// RecordAuditDrop records an audit entry lost to overflow.
func (sm *SinkMetrics) RecordAuditDrop() {
	if sm == nil {
		return
	}
	sm.auditDropped.Inc()
}

// SetAuditQueueDepth updates the audit queue gauge.
func (sm *SinkMetrics) SetAuditQueueDepth(depth int) {
	if sm == nil {
		return
	}
	sm.auditQueue.Set(float64(depth))
}

// RecordMeteringEvent records one metering event.
func (sm *SinkMetrics) RecordMeteringEvent() {
	if sm == nil {
		return
	}
	sm.meteringEvents.Inc()
}

// RecordMeteringDrop records a metering event lost to overflow.
func (sm *SinkMetrics) RecordMeteringDrop() {
	if sm == nil {
		return
	}
	sm.meteringDrops.Inc()
}
