package rbits

import (
	"math"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// Block is a byte aligned sequence of one or more packed records.
type Block []byte

// Encode packs the record according to the schema. It returns
// ErrFieldOverflow if any value does not fit its field.
func Encode(s Schema, r Record) (Block, error) {
	return EncodeBatch(s, r)
}

// EncodeBatch packs the records back to back into a single block with one
// final pad to the byte boundary.
func EncodeBatch(s Schema, records ...Record) (Block, error) {
	w := bitWriter{buf: make([]byte, 0, byteLen(s.bits*len(records)))}
	for _, r := range records {
		if err := encodeRecord(&w, s, r); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

func encodeRecord(w *bitWriter, s Schema, r Record) error {
	for name := range r {
		if _, ok := s.index[name]; !ok {
			return errors.Wrap(ErrUnknownField, "", j.KV("field", name))
		}
	}

	for _, f := range s.fields {
		v, ok := r[f.Name]
		if !ok {
			return errors.Wrap(ErrMissingField, "", j.KV("field", f.Name))
		}

		bits, err := pack(f, v)
		if err != nil {
			return err
		}

		w.write(bits, f.Width)
	}

	return nil
}

// pack returns the field value as the low Width bits of a uint64.
func pack(f Field, v Value) (uint64, error) {
	if v.kind != f.Kind {
		return 0, errors.Wrap(ErrFieldKind, "", j.KV("field", f.Name),
			j.KV("want", f.Kind.String()), j.KV("got", v.kind.String()))
	}

	overflow := func() error {
		return errors.Wrap(ErrFieldOverflow, "", j.KV("field", f.Name),
			j.KV("width", f.Width), j.KV("value", v.String()))
	}

	switch f.Kind {
	case KindUint:
		if v.bits&^mask(f.Width) != 0 {
			return 0, overflow()
		}
		return v.bits, nil

	case KindInt:
		i := v.Int()
		if f.Width < 64 {
			lim := int64(1) << (f.Width - 1)
			if i < -lim || i >= lim {
				return 0, overflow()
			}
		}
		return uint64(i) & mask(f.Width), nil

	case KindBool:
		return v.bits, nil

	case KindFixed:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return 0, overflow()
		}
		scaled := math.Round(math.Ldexp(v.f, f.Frac))
		lim := math.Ldexp(1, f.Width-1)
		if scaled < -lim || scaled >= lim {
			return 0, overflow()
		}
		return uint64(int64(scaled)) & mask(f.Width), nil
	}

	return 0, errors.Wrap(ErrFieldKind, "", j.KV("field", f.Name))
}

// Decode unpacks a single record. It returns ErrTruncatedBlock if the block
// holds fewer bits than the schema requires. Trailing bits are ignored.
func Decode(s Schema, b Block) (Record, error) {
	rl, err := DecodeBatch(s, b, 1)
	if err != nil {
		return nil, err
	}
	return rl[0], nil
}

// DecodeBatch unpacks n records packed with EncodeBatch. It returns
// ErrTruncatedBlock if the block holds fewer than n records or n is negative.
func DecodeBatch(s Schema, b Block, n int) ([]Record, error) {
	r := bitReader{buf: b}
	if s.bits == 0 || n < 0 || n > r.remaining()/s.bits {
		return nil, errors.Wrap(ErrTruncatedBlock, "", j.KV("have_bits", r.remaining()),
			j.KV("records", n), j.KV("record_bits", s.bits))
	}

	res := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec := make(Record, len(s.fields))
		for _, f := range s.fields {
			rec[f.Name] = unpack(f, r.read(f.Width))
		}
		res = append(res, rec)
	}

	return res, nil
}

func unpack(f Field, bits uint64) Value {
	switch f.Kind {
	case KindInt:
		return Int(signExtend(bits, f.Width))
	case KindBool:
		return Bool(bits != 0)
	case KindFixed:
		return Fixed(math.Ldexp(float64(signExtend(bits, f.Width)), -f.Frac))
	default:
		return Uint(bits)
	}
}
