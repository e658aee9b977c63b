package rbits_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/luno/repyable/rbits"
)

func TestFrameGolden(t *testing.T) {
	frame := rbits.AppendFrame(nil, rbits.FrameBlock, []byte{0xAA})
	goldie.New(t).Assert(t, "block_frame", frame)

	kind, payload, n, err := rbits.ParseFrame(frame)
	jtest.RequireNil(t, err)
	require.Equal(t, rbits.FrameBlock, kind)
	require.Equal(t, []byte{0xAA}, payload)
	require.Equal(t, len(frame), n)
}

func TestFrameReader(t *testing.T) {
	var buf bytes.Buffer
	jtest.RequireNil(t, rbits.WriteFrame(&buf, rbits.FrameSchema, []byte(flagValue.String())))
	jtest.RequireNil(t, rbits.WriteFrame(&buf, rbits.FrameBlock, []byte{0xAA}))
	jtest.RequireNil(t, rbits.WriteFrame(&buf, rbits.FrameBlock, nil))

	fr := rbits.NewFrameReader(&buf)

	kind, payload, err := fr.Next()
	jtest.RequireNil(t, err)
	require.Equal(t, rbits.FrameSchema, kind)
	require.Equal(t, "flag:1:bool,value:7:uint", string(payload))

	kind, payload, err = fr.Next()
	jtest.RequireNil(t, err)
	require.Equal(t, rbits.FrameBlock, kind)
	require.Equal(t, []byte{0xAA}, payload)

	kind, payload, err = fr.Next()
	jtest.RequireNil(t, err)
	require.Equal(t, rbits.FrameBlock, kind)
	require.Empty(t, payload)

	_, _, err = fr.Next()
	require.Equal(t, io.EOF, err)
}

func TestFrameCorruption(t *testing.T) {
	frame := rbits.AppendFrame(nil, rbits.FrameBlock, []byte{0xAA, 0xBB})

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		expErr error
	}{
		{
			name:   "payload bit flip",
			mutate: func(b []byte) []byte { b[9] ^= 0x01; return b },
			expErr: rbits.ErrChecksumMismatch,
		}, {
			name:   "kind changed",
			mutate: func(b []byte) []byte { b[4] = byte(rbits.FrameSchema); return b },
			expErr: rbits.ErrChecksumMismatch,
		}, {
			name:   "trailer damaged",
			mutate: func(b []byte) []byte { b[len(b)-1] = 'X'; return b },
			expErr: rbits.ErrTrailerMismatch,
		}, {
			name:   "truncated",
			mutate: func(b []byte) []byte { return b[:len(b)-2] },
			expErr: rbits.ErrTruncatedBlock,
		}, {
			name:   "truncated header",
			mutate: func(b []byte) []byte { return b[:3] },
			expErr: rbits.ErrTruncatedBlock,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := test.mutate(append([]byte(nil), frame...))

			_, _, _, err := rbits.ParseFrame(b)
			jtest.Require(t, test.expErr, err)

			_, _, err = rbits.NewFrameReader(bytes.NewReader(b)).Next()
			jtest.Require(t, test.expErr, err)
		})
	}
}
