package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installRecorder swaps in an always-sampling tracer provider backed by an
// in-memory recorder and restores the previous global provider on cleanup.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(recorder),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestStartToolSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartToolSpan(context.Background(), "get_unread_emails",
		attribute.String(SpanAttrThread, "thread-1"))
	FinishSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name() != "tool.get_unread_emails" {
		t.Errorf("span name = %q, want %q", got.Name(), "tool.get_unread_emails")
	}
	if got.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", got.Status().Code)
	}

	want := map[attribute.Key]string{
		SpanAttrTool:   "get_unread_emails",
		SpanAttrThread: "thread-1",
	}
	for _, kv := range got.Attributes() {
		if expected, ok := want[kv.Key]; ok {
			if kv.Value.AsString() != expected {
				t.Errorf("attribute %s = %q, want %q", kv.Key, kv.Value.AsString(), expected)
			}
			delete(want, kv.Key)
		}
	}
	for key := range want {
		t.Errorf("attribute %s missing from span", key)
	}

	if TraceID(ctx) == "" {
		t.Error("TraceID(ctx) is empty inside an active span")
	}
	if SpanID(ctx) == "" {
		t.Error("SpanID(ctx) is empty inside an active span")
	}
}

func TestStartGoogleAPISpan(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceGmail, "drafts.create")
	FinishSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if name := spans[0].Name(); name != "google.gmail.drafts.create" {
		t.Errorf("span name = %q, want %q", name, "google.gmail.drafts.create")
	}
}

func TestFinishSpanError(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartToolSpan(context.Background(), "create_draft_reply")
	FinishSpan(span, errors.New("thread not found"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status().Code)
	}
	if got.Status().Description != "thread not found" {
		t.Errorf("status description = %q, want %q", got.Status().Description, "thread not found")
	}
	if len(got.Events()) == 0 {
		t.Error("expected a recorded error event on the span")
	}
}

func TestTraceIDWithoutSpan(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID() = %q, want empty without a span", id)
	}
	if id := SpanID(context.Background()); id != "" {
		t.Errorf("SpanID() = %q, want empty without a span", id)
	}
}
