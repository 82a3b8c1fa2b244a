package tracing

import (
	"context"

	"go.opentelemetry.io/otel"

	"concordlabs/concord/pkg/message"
)

// headerCarrier adapts message headers to the OpenTelemetry TextMap
// carrier interface so trace context crosses agent boundaries inside
// the message itself.
type headerCarrier map[string]string

func (c headerCarrier) Get(key string) string {
	return c[key]
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// Inject writes the trace context from ctx into the message headers.
// The headers map is created if nil.
func Inject(ctx context.Context, m *message.Message) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(m.Headers))
}

// Extract returns a context carrying the trace context found in the
// message headers, if any.
func Extract(ctx context.Context, m *message.Message) context.Context {
	if m.Headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier(m.Headers))
}
