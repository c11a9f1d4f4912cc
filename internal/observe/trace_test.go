package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestTracer swaps the global tracer provider for one backed by an
// in-memory exporter and restores the original on cleanup.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestCorrelationIDEmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestStartSpanRecordsAndCorrelates(t *testing.T) {
	exp := installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "transcribe-window")
	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(cid))
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "transcribe-window" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "transcribe-window")
	}
}

func TestLoggerAnnotatesOnlyInsideSpan(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil without a span")
	}

	installTestTracer(t)
	ctx, span := StartSpan(context.Background(), "push-audio")
	defer span.End()
	if Logger(ctx) == nil {
		t.Fatal("Logger returned nil inside a span")
	}
}
