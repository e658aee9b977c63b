package rbits

import "fmt"

// Value is a single field value of a record.
type Value struct {
	kind Kind
	bits uint64
	f    float64
}

// Uint returns an unsigned integer value.
func Uint(v uint64) Value {
	return Value{kind: KindUint, bits: v}
}

// Int returns a signed integer value.
func Int(v int64) Value {
	return Value{kind: KindInt, bits: uint64(v)}
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	var b uint64
	if v {
		b = 1
	}
	return Value{kind: KindBool, bits: b}
}

// Fixed returns a fixed-point value. Only values that are a multiple of
// 2^-Frac of their field survive a round trip unchanged.
func Fixed(v float64) Value {
	return Value{kind: KindFixed, f: v}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) Uint() uint64   { return v.bits }
func (v Value) Int() int64     { return int64(v.bits) }
func (v Value) Bool() bool     { return v.bits != 0 }
func (v Value) Float() float64 { return v.f }

func (v Value) String() string {
	switch v.kind {
	case KindUint:
		return fmt.Sprint(v.Uint())
	case KindInt:
		return fmt.Sprint(v.Int())
	case KindBool:
		return fmt.Sprint(v.Bool())
	case KindFixed:
		return fmt.Sprint(v.Float())
	default:
		return "<invalid>"
	}
}

// Interface returns the value as a plain go value, ex. for json output.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindUint:
		return v.Uint()
	case KindInt:
		return v.Int()
	case KindBool:
		return v.Bool()
	case KindFixed:
		return v.Float()
	default:
		return nil
	}
}

// Record is an event record keyed by field name.
type Record map[string]Value
