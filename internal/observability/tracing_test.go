package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNewTracer_NoEndpoint(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceVersion: "test"})
	defer func() { _ = shutdown(context.Background()) }()

	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}
	if tracer.config.ServiceName != "toolchat" {
		t.Errorf("ServiceName = %q, want toolchat", tracer.config.ServiceName)
	}

	ctx, span := tracer.Start(context.Background(), "chat", attribute.String("mode", "batch"))
	if ctx == nil || span == nil {
		t.Fatal("Start returned nil")
	}
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()
}

func TestTracer_NilIsNoop(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.Start(context.Background(), "x")
	if ctx == nil || span == nil {
		t.Fatal("nil tracer should return usable span")
	}
	if span.SpanContext().IsValid() {
		t.Error("nil tracer span should not be recording")
	}
	span.End()
}
