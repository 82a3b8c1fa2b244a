// Package telemetry provides observability for the Concord agent bus.
//
// # Components
//
//   - logging: structured slog logging with secret and hash redaction
//   - metrics: Prometheus metric collection for the bus, governance,
//     resilience, and sink components
//   - tracing: OpenTelemetry distributed tracing with OTLP export and
//     W3C context propagation through message headers
//
// # Usage
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json"})
//	logger.SetDefault()
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.Bus().RecordMessage("QUERY", "HIGH", "DELIVERED", elapsed)
//
//	tracer, _ := tracing.New(&cfg.Telemetry.Tracing)
//	ctx, span := tracer.Start(ctx, "bus.process")
//	defer span.End()
//
// # Redaction
//
// Bearer tokens, JWTs, and secret-bearing attributes are masked in log
// output, and constitutional hashes are trimmed to their first eight
// characters. Redaction is on by default and survives logger With calls.
package telemetry
