package observe

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// withTestTracer installs a real tracer provider for the duration of the test
// so spans carry valid trace IDs.
func withTestTracer(t *testing.T) {
	t.Helper()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceName: "archos-test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })
}

func TestCorrelationIDWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID on bare context = %q, want empty", got)
	}
}

func TestCorrelationIDWithinSpan(t *testing.T) {
	withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "test-op")
	defer span.End()

	cid := CorrelationID(ctx)
	if cid == "" {
		t.Fatal("CorrelationID empty inside active span")
	}
	if cid != span.SpanContext().TraceID().String() {
		t.Errorf("CorrelationID = %q, want trace ID %q", cid, span.SpanContext().TraceID())
	}
}

func TestStartSpanNestsUnderParent(t *testing.T) {
	withTestTracer(t)

	ctx, parent := StartSpan(context.Background(), "parent")
	defer parent.End()

	_, child := StartSpan(ctx, "child")
	defer child.End()

	if child.SpanContext().TraceID() != parent.SpanContext().TraceID() {
		t.Error("child span not in parent's trace")
	}
	if child.SpanContext().SpanID() == parent.SpanContext().SpanID() {
		t.Error("child span shares parent's span ID")
	}
}

func TestLoggerEnrichment(t *testing.T) {
	withTestTracer(t)

	// Without a span the default logger comes back untouched.
	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}

	ctx, span := StartSpan(context.Background(), "test-op")
	defer span.End()

	l := Logger(ctx)
	if l == nil {
		t.Fatal("Logger returned nil inside span")
	}
	if !l.Enabled(ctx, 0) {
		t.Error("enriched logger should remain enabled at info level")
	}
}

func TestSpanKindOption(t *testing.T) {
	withTestTracer(t)

	_, span := StartSpan(context.Background(), "server-op", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	ro, ok := span.(sdktrace.ReadOnlySpan)
	if !ok {
		t.Skip("span does not expose read-only view")
	}
	if ro.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", ro.SpanKind())
	}
}
