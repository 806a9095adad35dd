package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTracerName is the instrumentation name used when none is given.
const DefaultTracerName = "livedom"

// Tracer returns a tracer from the global provider.
// An empty name resolves to DefaultTracerName.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = DefaultTracerName
	}
	return otel.Tracer(name)
}

// StartSpan starts an internal span named "livedom.<op>".
// A nil tracer falls back to Tracer("").
func StartSpan(ctx context.Context, tracer trace.Tracer, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracer == nil {
		tracer = Tracer("")
	}
	return tracer.Start(ctx, DefaultTracerName+"."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on span, sets its status and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
