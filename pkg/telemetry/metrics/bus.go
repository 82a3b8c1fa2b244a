package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"concordlabs/concord/pkg/config"
)

// BusMetrics tracks the message pipeline.
//
// Metrics:
//   - concord_bus_messages_total: processed messages by type, priority, status
//   - concord_bus_processing_duration_seconds: pipeline latency histogram
//   - concord_bus_queue_depth: admitted, not yet processed messages
//   - concord_bus_queue_wait_seconds: admission-to-dispatch wait histogram
//   - concord_bus_queue_full_total: sends rejected because the queue was full
//   - concord_bus_broadcasts_total: broadcast fan-outs by outcome
//   - concord_bus_success_rate: delivered fraction of processed messages
type BusMetrics struct {
	messagesTotal      *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
	queueDepth         prometheus.Gauge
	queueWait          prometheus.Histogram
	queueFullTotal     prometheus.Counter
	broadcastsTotal    *prometheus.CounterVec
	successRate        prometheus.Gauge
}

// NewBusMetrics creates and registers bus metrics with the provided registry.
func NewBusMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BusMetrics {
	bm := &BusMetrics{
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "messages_total",
				Help:      "Total number of messages processed by the bus",
			},
			[]string{"type", "priority", "status"},
		),

		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "processing_duration_seconds",
				Help:      "Duration of message pipeline processing in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"type"},
		),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_depth",
				Help:      "Number of admitted messages awaiting processing",
			},
		),

		queueWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_wait_seconds",
				Help:      "Time messages spend queued before a worker picks them up",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),

		queueFullTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_full_total",
				Help:      "Sends rejected because the queue stayed full past the timeout",
			},
		),

		broadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "broadcasts_total",
				Help:      "Broadcast fan-out deliveries by outcome",
			},
			[]string{"outcome"},
		),

		successRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "success_rate",
				Help:      "Fraction of processed messages that reached DELIVERED",
			},
		),
	}

	registry.MustRegister(
		bm.messagesTotal,
		bm.processingDuration,
		bm.queueDepth,
		bm.queueWait,
		bm.queueFullTotal,
		bm.broadcastsTotal,
		bm.successRate,
	)

	return bm
}

// RecordMessage records a processed message and its pipeline latency.
func (bm *BusMetrics) RecordMessage(msgType, priority, status string, duration time.Duration) {
	if bm == nil {
		return
	}
	bm.messagesTotal.WithLabelValues(msgType, priority, status).Inc()
	bm.processingDuration.WithLabelValues(msgType).Observe(duration.Seconds())
}

// SetQueueDepth updates the queue depth gauge.
func (bm *BusMetrics) SetQueueDepth(depth int) {
	if bm == nil {
		return
	}
	bm.queueDepth.Set(float64(depth))
}

// RecordQueueWait records how long a message waited for a worker.
func (bm *BusMetrics) RecordQueueWait(wait time.Duration) {
	if bm == nil {
		return
	}
	bm.queueWait.Observe(wait.Seconds())
}

// RecordQueueFull records a send rejected with a full queue.
func (bm *BusMetrics) RecordQueueFull() {
	if bm == nil {
		return
	}
	bm.queueFullTotal.Inc()
}

// RecordBroadcast records one broadcast fan-out delivery attempt.
func (bm *BusMetrics) RecordBroadcast(outcome string) {
	if bm == nil {
		return
	}
	bm.broadcastsTotal.WithLabelValues(outcome).Inc()
}

// SetSuccessRate updates the delivered fraction gauge.
func (bm *BusMetrics) SetSuccessRate(rate float64) {
	if bm == nil {
		return
	}
	bm.successRate.Set(rate)
}
