// Package metrics provides Prometheus metrics for the Concord agent bus.
//
// The Collector orchestrates four metric groups:
//
//   - BusMetrics: message throughput, pipeline latency, queue pressure
//   - GovernanceMetrics: validation, policy evaluation, deliberation
//   - ResilienceMetrics: circuit breakers, health score, recovery, chaos
//   - SinkMetrics: audit and metering queue behavior
//
// All metrics use the configured namespace and subsystem (by default
// concord_bus_*). Group accessors return nil when metrics are disabled
// and every recording method tolerates a nil receiver, so call sites
// record unconditionally:
//
//	collector.Bus().RecordMessage("COMMAND", "HIGH", "DELIVERED", elapsed)
//
// Agent-labeled series go through a cardinality limiter; past the
// ceiling, new agents are aggregated under the label value "other".
package metrics
