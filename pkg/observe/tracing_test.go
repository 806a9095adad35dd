package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingSpan struct {
	noop.Span
	name   string
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

type recordingTracer struct {
	noop.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recordingSpan{name: name}
	t.spans = append(t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

func TestStartEndSpan(t *testing.T) {
	tracer := &recordingTracer{}

	ctx, span := StartSpan(context.Background(), tracer, "patch")
	if trace.SpanFromContext(ctx) != span {
		t.Error("span not stored on context")
	}
	EndSpan(span, nil)

	_, span = StartSpan(context.Background(), tracer, "hydrate")
	EndSpan(span, errors.New("boom"))

	if len(tracer.spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(tracer.spans))
	}
	ok, failed := tracer.spans[0], tracer.spans[1]
	if ok.name != "livedom.patch" || ok.status != codes.Ok || !ok.ended {
		t.Errorf("ok span = %+v", ok)
	}
	if failed.status != codes.Error || len(failed.errs) != 1 || !failed.ended {
		t.Errorf("failed span = %+v", failed)
	}
}

func TestStartSpanDefaults(t *testing.T) {
	ctx, span := StartSpan(context.TODO(), nil, "render")
	if ctx == nil || span == nil {
		t.Fatal("expected context and span")
	}
	EndSpan(span, nil)
	EndSpan(nil, nil)
	if Tracer("") == nil {
		t.Fatal("Tracer returned nil")
	}
}
