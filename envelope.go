package repyable

import (
	"encoding/binary"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/repyable/rbits"
)

const (
	envelopeHeaderLen = 9
	maxTraceLen       = 255
)

// MarshalEvent returns the queue envelope of the event:
// [index:8][trace length:1][trace][block], big-endian.
func MarshalEvent(e *Event) ([]byte, error) {
	if len(e.Trace) > maxTraceLen {
		return nil, errors.New("trace too long", j.KV("len", len(e.Trace)))
	}

	b := make([]byte, 0, envelopeHeaderLen+len(e.Trace)+len(e.Block))
	b = binary.BigEndian.AppendUint64(b, uint64(e.Index))
	b = append(b, byte(len(e.Trace)))
	b = append(b, e.Trace...)
	b = append(b, e.Block...)

	return b, nil
}

// UnmarshalEvent decodes a queue envelope and the record it carries.
func UnmarshalEvent(schema rbits.Schema, b []byte) (*Event, error) {
	if len(b) < envelopeHeaderLen {
		return nil, errors.Wrap(rbits.ErrTruncatedBlock, "short envelope", j.KV("len", len(b)))
	}

	index := int64(binary.BigEndian.Uint64(b))
	n := int(b[8])
	if len(b) < envelopeHeaderLen+n {
		return nil, errors.Wrap(rbits.ErrTruncatedBlock, "short envelope trace",
			j.KV("len", len(b)), j.KV("trace_len", n))
	}

	var tr []byte
	if n > 0 {
		tr = b[envelopeHeaderLen : envelopeHeaderLen+n : envelopeHeaderLen+n]
	}
	block := rbits.Block(b[envelopeHeaderLen+n:])

	rec, err := rbits.Decode(schema, block)
	if err != nil {
		return nil, errors.Wrap(err, "decode envelope", j.KV("index", index))
	}

	return &Event{
		Index:  index,
		Record: rec,
		Block:  block,
		Trace:  tr,
	}, nil
}
