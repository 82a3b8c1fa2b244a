package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"concordlabs/concord/pkg/message"
)

func TestInjectExtract_RoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	defer provider.Shutdown(context.Background())

	tracer := provider.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "send")
	defer span.End()

	msg := message.New("a", "b", message.TypeCommand)
	Inject(ctx, msg)

	if len(msg.Headers) == 0 {
		t.Fatal("expected trace headers injected into message")
	}
	if _, ok := msg.Headers["traceparent"]; !ok {
		t.Fatalf("expected traceparent header, got %v", msg.Headers)
	}

	extracted := Extract(context.Background(), msg)
	if TraceID(extracted) != TraceID(ctx) {
		t.Errorf("trace ID lost in transit: sent %q, received %q", TraceID(ctx), TraceID(extracted))
	}
}

func TestExtract_NoHeaders(t *testing.T) {
	msg := message.New("a", "b", message.TypeCommand)
	msg.Headers = nil

	ctx := Extract(context.Background(), msg)
	if TraceID(ctx) != "" {
		t.Errorf("expected no trace context, got %q", TraceID(ctx))
	}
}
