// Package filters provides event filters over the decoded record fields of
// repyable events.
package filters

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rbits"
)

// EventFilter takes an Event and returns true if it should be processed.
// Filters should return promptly using only data on the event itself.
type EventFilter func(e *repyable.Event) (bool, error)

type (
	Deserializer[T any] func(v rbits.Value) (T, error)
	DataFilter[T any]   func(d T) (bool, error)
)

const (
	deserializationErrMsg  = "deserialization failed"
	fieldEventFilterErrMsg = "cannot make a FieldEventFilter from an empty field, nil Deserializer or DataFilter"
)

var (
	fieldEventFilterErr = errors.New(fieldEventFilterErrMsg)
	deserializationErr  = errors.New(deserializationErrMsg)
)

// FieldEventFilter returns a filter that deserializes the named record field
// and passes it to flt. Events without the field fail to deserialize.
func FieldEventFilter[T any](field string, ds Deserializer[T], flt DataFilter[T]) (EventFilter, error) {
	if field == "" || ds == nil || flt == nil {
		return nil, makeFieldEventFilterErr(j.MKV{"field": field, "ds": ds != nil, "flt": flt != nil})
	}
	return func(e *repyable.Event) (bool, error) {
		if e == nil {
			return false, asDeserializationErr(rbits.ErrMissingField, field)
		}
		v, ok := e.Record[field]
		if !ok {
			return false, asDeserializationErr(rbits.ErrMissingField, field)
		}
		d, err := ds(v)
		if err != nil {
			return false, asDeserializationErr(err, field)
		}
		return flt(d)
	}, nil
}

// Equals returns a filter matching events whose field equals v.
func Equals(field string, v rbits.Value) EventFilter {
	return func(e *repyable.Event) (bool, error) {
		if e == nil {
			return false, nil
		}
		got, ok := e.Record[field]
		return ok && got == v, nil
	}
}

// All returns a filter that passes events passed by every filter. It stops
// at the first filter that rejects the event or errors.
func All(efs ...EventFilter) EventFilter {
	return func(e *repyable.Event) (bool, error) {
		for _, ef := range efs {
			ok, err := ef(e)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any returns a filter that passes events passed by at least one filter.
// Errors from earlier filters are ignored if a later filter passes.
func Any(efs ...EventFilter) EventFilter {
	return func(e *repyable.Event) (bool, error) {
		var lastErr error
		for _, ef := range efs {
			ok, err := ef(e)
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				return true, nil
			}
		}
		return false, lastErr
	}
}

func kindDeserializer[T any](kind rbits.Kind, get func(rbits.Value) T) Deserializer[T] {
	return func(v rbits.Value) (T, error) {
		if v.Kind() != kind {
			var zero T
			return zero, errors.Wrap(rbits.ErrFieldKind, "",
				j.KV("want", kind.String()), j.KV("got", v.Kind().String()))
		}
		return get(v), nil
	}
}

var (
	AsUint  = kindDeserializer(rbits.KindUint, rbits.Value.Uint)
	AsInt   = kindDeserializer(rbits.KindInt, rbits.Value.Int)
	AsBool  = kindDeserializer(rbits.KindBool, rbits.Value.Bool)
	AsFloat = kindDeserializer(rbits.KindFixed, rbits.Value.Float)
)

// IsDeserializationErr returns true if the error occurred while reading a field.
func IsDeserializationErr(err error) bool {
	return errors.Is(err, deserializationErr)
}

func asDeserializationErr(err error, field string) error {
	return errors.Wrap(err, deserializationErrMsg, j.KS("field", field))
}

// IsFieldEventFilterErr returns true if the error occurred during construction of a FieldEventFilter.
func IsFieldEventFilterErr(err error) bool {
	return errors.Is(err, fieldEventFilterErr)
}

func makeFieldEventFilterErr(ol ...errors.Option) error {
	return errors.New(fieldEventFilterErrMsg, ol...)
}
