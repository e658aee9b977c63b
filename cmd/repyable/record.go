package main

import (
	"encoding/json"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/repyable"
	"github.com/luno/repyable/rbits"
)

// parseRecord converts a json object to a record of the schema. Numbers
// are converted to the kind of their field.
func parseRecord(schema rbits.Schema, data []byte) (rbits.Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid json record")
	}

	rec := make(rbits.Record, len(raw))
	for name, msg := range raw {
		f, ok := schema.Field(name)
		if !ok {
			return nil, errors.Wrap(rbits.ErrUnknownField, "", j.KS("field", name))
		}

		var err error
		switch f.Kind {
		case rbits.KindUint:
			var v uint64
			err = json.Unmarshal(msg, &v)
			rec[name] = rbits.Uint(v)
		case rbits.KindInt:
			var v int64
			err = json.Unmarshal(msg, &v)
			rec[name] = rbits.Int(v)
		case rbits.KindBool:
			var v bool
			err = json.Unmarshal(msg, &v)
			rec[name] = rbits.Bool(v)
		case rbits.KindFixed:
			var v float64
			err = json.Unmarshal(msg, &v)
			rec[name] = rbits.Fixed(v)
		}
		if err != nil {
			return nil, errors.Wrap(rbits.ErrFieldKind, err.Error(), j.KS("field", name))
		}
	}

	return rec, nil
}

type eventJSON struct {
	Index  int64          `json:"index"`
	Record map[string]any `json:"record"`
	Trace  string         `json:"trace,omitempty"`
}

func formatEvent(e *repyable.Event) ([]byte, error) {
	out := eventJSON{
		Index:  e.Index,
		Record: make(map[string]any, len(e.Record)),
		Trace:  string(e.Trace),
	}
	for name, v := range e.Record {
		out.Record[name] = v.Interface()
	}
	return json.Marshal(out)
}
