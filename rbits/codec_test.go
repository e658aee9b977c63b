package rbits_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/luno/repyable/rbits"
)

var flagValue = rbits.MustSchema(
	rbits.Field{Name: "flag", Width: 1, Kind: rbits.KindBool},
	rbits.Field{Name: "value", Width: 7, Kind: rbits.KindUint},
)

var mixed = rbits.MustSchema(
	rbits.Field{Name: "a", Width: 3, Kind: rbits.KindUint},
	rbits.Field{Name: "b", Width: 5, Kind: rbits.KindInt},
	rbits.Field{Name: "c", Width: 1, Kind: rbits.KindBool},
	rbits.Field{Name: "d", Width: 12, Kind: rbits.KindFixed, Frac: 4},
)

func TestEncodeFlagValue(t *testing.T) {
	rec := rbits.Record{"flag": rbits.Bool(true), "value": rbits.Uint(42)}

	b, err := rbits.Encode(flagValue, rec)
	jtest.RequireNil(t, err)
	require.Equal(t, rbits.Block{0xAA}, b)

	goldie.New(t).Assert(t, "flag_value", b)

	res, err := rbits.Decode(flagValue, rbits.Block{0xAA})
	jtest.RequireNil(t, err)
	require.Equal(t, rec, res)
}

func TestEncodeGolden(t *testing.T) {
	g := goldie.New(t)

	b, err := rbits.Encode(mixed, rbits.Record{
		"a": rbits.Uint(5),
		"b": rbits.Int(-3),
		"c": rbits.Bool(true),
		"d": rbits.Fixed(-2.5),
	})
	jtest.RequireNil(t, err)
	require.Len(t, b, mixed.ByteLen())
	g.Assert(t, "mixed", b)

	b, err = rbits.EncodeBatch(flagValue,
		rbits.Record{"flag": rbits.Bool(true), "value": rbits.Uint(42)},
		rbits.Record{"flag": rbits.Bool(false), "value": rbits.Uint(127)},
	)
	jtest.RequireNil(t, err)
	g.Assert(t, "batch", b)
}

func TestEncodeDeterministic(t *testing.T) {
	rec := rbits.Record{
		"a": rbits.Uint(7),
		"b": rbits.Int(15),
		"c": rbits.Bool(false),
		"d": rbits.Fixed(127.9375),
	}

	b1, err := rbits.Encode(mixed, rec)
	jtest.RequireNil(t, err)

	for i := 0; i < 10; i++ {
		b2, err := rbits.Encode(mixed, rec)
		jtest.RequireNil(t, err)
		require.Equal(t, b1, b2)
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema rbits.Schema
		rec    rbits.Record
		expErr error
	}{
		{
			name:   "uint overflow",
			schema: flagValue,
			rec:    rbits.Record{"flag": rbits.Bool(true), "value": rbits.Uint(128)},
			expErr: rbits.ErrFieldOverflow,
		}, {
			name:   "int above range",
			schema: mixed,
			rec:    rbits.Record{"a": rbits.Uint(0), "b": rbits.Int(16), "c": rbits.Bool(false), "d": rbits.Fixed(0)},
			expErr: rbits.ErrFieldOverflow,
		}, {
			name:   "int below range",
			schema: mixed,
			rec:    rbits.Record{"a": rbits.Uint(0), "b": rbits.Int(-17), "c": rbits.Bool(false), "d": rbits.Fixed(0)},
			expErr: rbits.ErrFieldOverflow,
		}, {
			name:   "fixed above range",
			schema: mixed,
			rec:    rbits.Record{"a": rbits.Uint(0), "b": rbits.Int(0), "c": rbits.Bool(false), "d": rbits.Fixed(128)},
			expErr: rbits.ErrFieldOverflow,
		}, {
			name:   "fixed nan",
			schema: mixed,
			rec:    rbits.Record{"a": rbits.Uint(0), "b": rbits.Int(0), "c": rbits.Bool(false), "d": rbits.Fixed(math.NaN())},
			expErr: rbits.ErrFieldOverflow,
		}, {
			name:   "wrong kind",
			schema: flagValue,
			rec:    rbits.Record{"flag": rbits.Uint(1), "value": rbits.Uint(1)},
			expErr: rbits.ErrFieldKind,
		}, {
			name:   "missing field",
			schema: flagValue,
			rec:    rbits.Record{"flag": rbits.Bool(true)},
			expErr: rbits.ErrMissingField,
		}, {
			name:   "unknown field",
			schema: flagValue,
			rec:    rbits.Record{"flag": rbits.Bool(true), "value": rbits.Uint(1), "other": rbits.Uint(1)},
			expErr: rbits.ErrUnknownField,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := rbits.Encode(test.schema, test.rec)
			jtest.Require(t, test.expErr, err)
			require.Nil(t, b)
		})
	}
}

func TestOverflowNeverTruncates(t *testing.T) {
	for width := 1; width < 64; width++ {
		s := rbits.MustSchema(rbits.Field{Name: "v", Width: width, Kind: rbits.KindUint})

		_, err := rbits.Encode(s, rbits.Record{"v": rbits.Uint(1 << width)})
		jtest.Require(t, rbits.ErrFieldOverflow, err)

		_, err = rbits.Encode(s, rbits.Record{"v": rbits.Uint(1<<width - 1)})
		jtest.RequireNil(t, err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := rbits.Decode(mixed, rbits.Block{0xBD, 0xFE})
	jtest.Require(t, rbits.ErrTruncatedBlock, err)

	_, err = rbits.Decode(flagValue, nil)
	jtest.Require(t, rbits.ErrTruncatedBlock, err)

	_, err = rbits.DecodeBatch(flagValue, rbits.Block{0xAA}, 2)
	jtest.Require(t, rbits.ErrTruncatedBlock, err)
}

func TestDecodeBatchCount(t *testing.T) {
	byteSchema := rbits.MustSchema(rbits.Field{Name: "v", Width: 8, Kind: rbits.KindUint})
	b := rbits.Block{1, 2}

	for _, n := range []int{-1, 3, math.MaxInt, math.MaxInt/8 + 1} {
		_, err := rbits.DecodeBatch(byteSchema, b, n)
		jtest.Require(t, rbits.ErrTruncatedBlock, err)
	}

	res, err := rbits.DecodeBatch(byteSchema, b, 0)
	jtest.RequireNil(t, err)
	require.Empty(t, res)

	res, err = rbits.DecodeBatch(byteSchema, b, 2)
	jtest.RequireNil(t, err)
	require.Equal(t, []rbits.Record{{"v": rbits.Uint(1)}, {"v": rbits.Uint(2)}}, res)
}

func TestDecodeIgnoresTrailingBits(t *testing.T) {
	res, err := rbits.Decode(mixed, rbits.Block{0xBD, 0xFE, 0xC7, 0xFF})
	jtest.RequireNil(t, err)
	require.Equal(t, rbits.Record{
		"a": rbits.Uint(5),
		"b": rbits.Int(-3),
		"c": rbits.Bool(true),
		"d": rbits.Fixed(-2.5),
	}, res)
}

func TestRoundTripRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		var fields []rbits.Field
		for f := 0; f < 1+rnd.Intn(8); f++ {
			width := 1 + rnd.Intn(64)
			field := rbits.Field{
				Name:  string(rune('a' + f)),
				Width: width,
				Kind:  rbits.Kind(1 + rnd.Intn(4)),
			}
			if field.Kind == rbits.KindFixed {
				field.Frac = rnd.Intn(min(width, 52) + 1)
			}
			fields = append(fields, field)
		}
		s := rbits.MustSchema(fields...)

		var records []rbits.Record
		for n := 0; n < 1+rnd.Intn(4); n++ {
			records = append(records, randomRecord(rnd, s))
		}

		b, err := rbits.EncodeBatch(s, records...)
		jtest.RequireNil(t, err, "schema", s.String())
		require.Len(t, b, (s.BitLen()*len(records)+7)/8)

		res, err := rbits.DecodeBatch(s, b, len(records))
		jtest.RequireNil(t, err)
		require.Equal(t, records, res, "schema %s", s.String())
	}
}

func randomRecord(rnd *rand.Rand, s rbits.Schema) rbits.Record {
	rec := make(rbits.Record)
	for _, f := range s.Fields() {
		switch f.Kind {
		case rbits.KindUint:
			rec[f.Name] = rbits.Uint(rnd.Uint64() >> (64 - f.Width))
		case rbits.KindInt:
			rec[f.Name] = rbits.Int(int64(rnd.Uint64()) >> (64 - f.Width))
		case rbits.KindBool:
			rec[f.Name] = rbits.Bool(rnd.Intn(2) == 1)
		case rbits.KindFixed:
			// Keep the mantissa within float64 precision so the value is representable.
			width := min(f.Width, 53)
			n := int64(rnd.Uint64()) >> (64 - width)
			rec[f.Name] = rbits.Fixed(math.Ldexp(float64(n), -f.Frac))
		}
	}
	return rec
}
