package tracing

import (
	"context"

	"github.com/luno/jettison/errors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Unmarshal decodes a traceparent header value into a remote opentelemetry SpanContext.
func Unmarshal(data []byte) (trace.SpanContext, error) {
	carrier := propagation.MapCarrier{traceparent: string(data)}
	ctx := propagator.Extract(context.Background(), carrier)

	span := trace.SpanContextFromContext(ctx)
	if !span.IsValid() {
		return trace.SpanContext{}, errors.New("invalid traceparent")
	}

	return span, nil
}
