package tracing

import (
	"context"

	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"go.opentelemetry.io/otel/trace"
)

// FromContext returns the encoded span context of the span in ctx for an
// event envelope, or nil if ctx carries no valid span.
func FromContext(ctx context.Context) []byte {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.HasTraceID() || !spanCtx.HasSpanID() {
		return nil
	}

	data, err := Marshal(spanCtx)
	if err != nil {
		return nil
	}
	return data
}

// WithEventTrace returns ctx with the producer span of an event loaded as
// the remote parent and its ids added to log fields. Events without a
// decodable trace leave ctx unchanged.
func WithEventTrace(ctx context.Context, data []byte) context.Context {
	if len(data) == 0 {
		return ctx
	}

	producer, err := Unmarshal(data)
	if err != nil {
		return ctx
	}

	ctx = trace.ContextWithRemoteSpanContext(ctx, producer)
	return log.ContextWith(ctx, j.MKS{
		"trace_id":         producer.TraceID().String(),
		"producer_span_id": producer.SpanID().String(),
	})
}
