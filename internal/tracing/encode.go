package tracing

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// maxLen is the largest encoded span context an event envelope can carry.
const maxLen = 255

var propagator = propagation.TraceContext{}

const traceparent = "traceparent"

// Marshal encodes the opentelemetry SpanContext as a W3C traceparent header
// value for storage in an event envelope.
func Marshal(span trace.SpanContext) ([]byte, error) {
	if !span.IsValid() {
		return nil, errors.New("invalid span context")
	}

	carrier := propagation.MapCarrier{}
	ctx := trace.ContextWithSpanContext(context.Background(), span)
	propagator.Inject(ctx, carrier)

	data := carrier.Get(traceparent)
	if len(data) > maxLen {
		return nil, errors.New("span context too long", j.KV("len", len(data)))
	}

	return []byte(data), nil
}
