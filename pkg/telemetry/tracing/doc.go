// Package tracing provides OpenTelemetry tracing for the Concord agent bus.
//
// The Tracer wraps the OpenTelemetry SDK with an OTLP gRPC exporter and
// parent-based ratio sampling. When tracing is disabled a noop tracer is
// returned, so instrumentation points carry no conditional logic.
//
// Trace context crosses agent boundaries inside the message itself:
// Inject writes the active span context into message headers before a
// send, and Extract restores it on the processing side, so a
// conversation spanning several agents appears as one trace.
//
// Span attributes never carry the full constitutional hash; the
// sanitized prefix form is recorded instead.
package tracing
