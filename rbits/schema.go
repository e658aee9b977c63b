package rbits

import (
	"strconv"
	"strings"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// Kind is the semantic type of a schema field.
type Kind int

const (
	KindUnknown  Kind = 0
	KindUint     Kind = 1
	KindInt      Kind = 2
	KindBool     Kind = 3
	KindFixed    Kind = 4
	kindSentinel Kind = 5
)

var kindNames = map[Kind]string{
	KindUint:  "uint",
	KindInt:   "int",
	KindBool:  "bool",
	KindFixed: "fixed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) valid() bool {
	return k > KindUnknown && k < kindSentinel
}

const maxWidth = 64

// Field declares one packed field of a record.
type Field struct {
	Name  string
	Width int
	Kind  Kind

	// Frac is the number of fractional bits of a KindFixed field.
	Frac int
}

func (f Field) String() string {
	s := f.Name + ":" + strconv.Itoa(f.Width) + ":" + f.Kind.String()
	if f.Kind == KindFixed {
		s += "." + strconv.Itoa(f.Frac)
	}
	return s
}

func (f Field) validate() error {
	if f.Name == "" {
		return errors.Wrap(ErrInvalidSchema, "empty field name")
	}
	if strings.ContainsAny(f.Name, ":,") {
		return errors.Wrap(ErrInvalidSchema, "reserved character in field name", j.KV("field", f.Name))
	}
	if f.Width < 1 || f.Width > maxWidth {
		return errors.Wrap(ErrInvalidSchema, "field width out of range",
			j.KV("field", f.Name), j.KV("width", f.Width))
	}
	if !f.Kind.valid() {
		return errors.Wrap(ErrInvalidSchema, "invalid field kind", j.KV("field", f.Name))
	}
	if f.Kind == KindFixed && (f.Frac < 0 || f.Frac > f.Width) {
		return errors.Wrap(ErrInvalidSchema, "fractional bits out of range",
			j.KV("field", f.Name), j.KV("frac", f.Frac))
	}
	return nil
}

// Schema is an immutable ordered list of fields shared by the encoder and
// decoder of a stream. The zero value is an empty schema.
type Schema struct {
	fields []Field
	index  map[string]int
	bits   int
}

// NewSchema returns a schema of the provided fields in order. Field names
// must be unique and non-empty.
func NewSchema(fields ...Field) (Schema, error) {
	s := Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.validate(); err != nil {
			return Schema{}, err
		}
		if f.Kind != KindFixed {
			f.Frac = 0
		}
		if _, ok := s.index[f.Name]; ok {
			return Schema{}, errors.Wrap(ErrInvalidSchema, "duplicate field", j.KV("field", f.Name))
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
		s.bits += f.Width
	}
	if len(s.fields) == 0 {
		return Schema{}, errors.Wrap(ErrInvalidSchema, "no fields")
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is intended for
// package level schema declarations.
func MustSchema(fields ...Field) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSchema parses the textual form returned by Schema.String,
// ex. "flag:1:bool,value:7:uint,pos:16:fixed.8".
func ParseSchema(text string) (Schema, error) {
	var fields []Field
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		split := strings.Split(part, ":")
		if len(split) != 3 {
			return Schema{}, errors.Wrap(ErrInvalidSchema, "invalid field", j.KV("field", part))
		}

		width, err := strconv.Atoi(split[1])
		if err != nil {
			return Schema{}, errors.Wrap(ErrInvalidSchema, "invalid width", j.KV("field", part))
		}

		f := Field{Name: split[0], Width: width}

		kind, frac, hasFrac := strings.Cut(split[2], ".")
		for k, name := range kindNames {
			if name == kind {
				f.Kind = k
			}
		}
		if hasFrac {
			if f.Kind != KindFixed {
				return Schema{}, errors.Wrap(ErrInvalidSchema, "fractional bits on non fixed field",
					j.KV("field", part))
			}
			f.Frac, err = strconv.Atoi(frac)
			if err != nil {
				return Schema{}, errors.Wrap(ErrInvalidSchema, "invalid fractional bits", j.KV("field", part))
			}
		}

		fields = append(fields, f)
	}

	return NewSchema(fields...)
}

// String returns the textual form of the schema.
func (s Schema) String() string {
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, ",")
}

// Fields returns a copy of the schema fields.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// BitLen returns the total packed width of one record.
func (s Schema) BitLen() int {
	return s.bits
}

// ByteLen returns the length of a block holding one record.
func (s Schema) ByteLen() int {
	return byteLen(s.bits)
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Equal returns true if both schemas declare identical fields in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

func byteLen(bits int) int {
	return (bits + 7) / 8
}
