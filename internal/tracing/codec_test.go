package tracing_test

import (
	"strings"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/luno/repyable/internal/tracing"
)

func TestEnvelopeTraceFormat(t *testing.T) {
	setup()

	state, err := trace.ParseTraceState("vendor=abc")
	jtest.RequireNil(t, err)

	cases := map[string]struct {
		flags trace.TraceFlags
		state trace.TraceState
		exp   string
	}{
		"sampled": {
			flags: trace.FlagsSampled,
			exp:   "00-00000000000000000000000000000009-0000000000000002-01",
		},
		"not sampled": {
			exp: "00-00000000000000000000000000000009-0000000000000002-00",
		},
		"trace state is not carried": {
			flags: trace.FlagsSampled,
			state: state,
			exp:   "00-00000000000000000000000000000009-0000000000000002-01",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sc := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    testTraceID(t),
				SpanID:     testSpanID(t),
				TraceFlags: tc.flags,
				TraceState: tc.state,
			})

			data, err := tracing.Marshal(sc)
			jtest.RequireNil(t, err)
			require.Equal(t, tc.exp, string(data))

			got, err := tracing.Unmarshal(data)
			jtest.RequireNil(t, err)
			require.True(t, got.IsRemote())
			require.Equal(t, sc.TraceID(), got.TraceID())
			require.Equal(t, sc.SpanID(), got.SpanID())
			require.Equal(t, tc.flags, got.TraceFlags())
			require.Zero(t, got.TraceState().Len())
		})
	}
}

func TestMarshalInvalid(t *testing.T) {
	_, err := tracing.Marshal(trace.SpanContext{})
	require.Error(t, err)

	_, err = tracing.Marshal(trace.NewSpanContext(trace.SpanContextConfig{TraceID: testTraceID(t)}))
	require.Error(t, err)
}

func TestUnmarshalInvalid(t *testing.T) {
	valid := "00-00000000000000000000000000000009-0000000000000002-01"

	for name, data := range map[string]string{
		"empty":          "",
		"garbage":        "not a traceparent",
		"zero trace id":  "00-00000000000000000000000000000000-0000000000000002-01",
		"zero span id":   "00-00000000000000000000000000000009-0000000000000000-01",
		"invalid hex":    strings.Replace(valid, "9", "g", 1),
		"version ff":     "ff" + valid[2:],
		"truncated":      valid[:len(valid)-3],
		"short trace id": "00-0009-0000000000000002-01",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tracing.Unmarshal([]byte(data))
			require.Error(t, err)
		})
	}
}
