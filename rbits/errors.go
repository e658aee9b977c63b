package rbits

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

var (
	// ErrFieldOverflow is returned when a value does not fit the declared bit width of its field.
	ErrFieldOverflow = errors.New("field value overflows bit width", j.C("ERR_3f0c2a9d71be5e40"))

	// ErrTruncatedBlock is returned when a block or frame holds fewer bits than required.
	ErrTruncatedBlock = errors.New("block truncated", j.C("ERR_b7d19e02c4a6f318"))

	ErrFieldKind        = errors.New("value kind does not match field kind", j.C("ERR_5e8a0d3cf21b9764"))
	ErrMissingField     = errors.New("record is missing a schema field", j.C("ERR_0c94e7b2a83d5f16"))
	ErrUnknownField     = errors.New("record has a field not in schema", j.C("ERR_e41f6b9d07c2a358"))
	ErrInvalidSchema    = errors.New("invalid schema", j.C("ERR_92a7c5e1d04b6f83"))
	ErrChecksumMismatch = errors.New("frame checksum mismatch", j.C("ERR_6d2b8f04e9a1c735"))
	ErrTrailerMismatch  = errors.New("frame trailer mismatch", j.C("ERR_a1c3e5f7092b4d68"))
)

// ErrFrameTooLarge is returned when a frame header declares a payload above MaxFrameLen.
var ErrFrameTooLarge = errors.New("frame too large", j.C("ERR_4c7e1a90b2d35f86"))
