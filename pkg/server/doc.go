// Package server provides the ops HTTP listener.
//
// The listener is a sidecar surface, separate from the bus transport. It
// exposes three endpoints:
//
//   - GET /metrics - Prometheus exposition of every registered collector
//   - GET /healthz - liveness probe backed by the health aggregator;
//     returns 503 only when the aggregate status is CRITICAL
//   - GET /readyz - readiness probe combining aggregate health with bus
//     queue statistics; a DEGRADED system is still ready
//
// # Basic Usage
//
//	srv := server.New(server.Options{
//	    Config:    cfg.Telemetry.Metrics,
//	    Collector: collector,
//	    Health:    aggregator,
//	    Bus:       b,
//	})
//	// Blocks until ctx is cancelled or the listener fails.
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Start shuts the listener down when its context is cancelled, waiting a
// bounded time for in-flight requests. Shutdown may also be called
// directly and is safe to call more than once.
//
// # Thread Safety
//
// All server operations are safe for concurrent use.
package server
