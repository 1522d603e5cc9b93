// Package serializer declares which record attributes are exposed to clients
// and converts raw request payloads into validated, typed field values.
package serializer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"albumapi/model"

	"github.com/mitchellh/mapstructure"
)

// Payload is a decoded JSON object. Numbers are expected as json.Number
// (decoder.UseNumber) but native Go numbers are accepted too.
type Payload map[string]interface{}

type Kind int

const (
	Integer Kind = iota
	Number
	String
	Nested
)

// Field describes one exposed attribute.
type Field struct {
	Name string
	// Column is the store column; defaults to Name.
	Column    string
	Kind      Kind
	Required  bool
	ReadOnly  bool
	MaxLength int

	// Schema and Many describe Nested fields.
	Schema *Schema
	Many   bool
}

func (f Field) column() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Schema is the whitelist of fields for one record type.
type Schema struct {
	Name   string
	Fields []Field
	New    func() model.Record
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Without returns a copy of s without the named field.
func (s *Schema) Without(name string) *Schema {
	out := &Schema{Name: s.Name, New: s.New}
	for _, f := range s.Fields {
		if f.Name != name {
			out.Fields = append(out.Fields, f)
		}
	}
	return out
}

// WithNested returns a copy of s whose nested field name uses child.
func (s *Schema) WithNested(name string, child *Schema) *Schema {
	out := &Schema{Name: s.Name, New: s.New, Fields: make([]Field, len(s.Fields))}
	copy(out.Fields, s.Fields)
	for i := range out.Fields {
		if out.Fields[i].Name == name {
			out.Fields[i].Schema = child
		}
	}
	return out
}

// NewRecord returns an empty record for this schema.
func (s *Schema) NewRecord() model.Record {
	return s.New()
}

// Validate checks raw against the schema and returns the typed values of the
// writable fields it carries. Unknown and read-only keys are dropped. With
// partial set, missing required fields are not reported.
func (s *Schema) Validate(raw Payload, partial bool) (Payload, error) {
	verr := &ValidationError{}
	out := make(Payload)

	for _, f := range s.Fields {
		if f.ReadOnly {
			continue
		}
		v, ok := raw[f.Name]
		if !ok {
			if f.Required && !partial {
				verr.Add(f.Name, msgRequired)
			}
			continue
		}
		if v == nil {
			verr.Add(f.Name, msgNull)
			continue
		}

		if f.Kind == Nested {
			val, nerr := validateNested(f, v, partial)
			if nerr != nil {
				verr.Merge("", nerr)
				continue
			}
			out[f.Name] = val
			continue
		}

		val, msg := convert(f, v)
		if msg != "" {
			verr.Add(f.Name, msg)
			continue
		}
		out[f.Name] = val
	}

	if !verr.Empty() {
		return nil, verr
	}
	return out, nil
}

func validateNested(f Field, v interface{}, partial bool) (interface{}, *ValidationError) {
	verr := &ValidationError{}

	if !f.Many {
		obj, ok := asObject(v)
		if !ok {
			verr.Add(f.Name, msgNotAnObject(v))
			return nil, verr
		}
		val, err := f.Schema.Validate(obj, partial)
		if err != nil {
			verr.Merge(f.Name, err.(*ValidationError))
			return nil, verr
		}
		return val, nil
	}

	items, ok := v.([]interface{})
	if !ok {
		if ps, isPayloads := v.([]Payload); isPayloads {
			items = make([]interface{}, len(ps))
			for i, p := range ps {
				items[i] = p
			}
		} else {
			verr.Add(f.Name, msgNotAList(v))
			return nil, verr
		}
	}

	out := make([]Payload, 0, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("%s[%d]", f.Name, i)
		obj, ok := asObject(item)
		if !ok {
			verr.Add(prefix, msgNotAnObject(item))
			continue
		}
		val, err := f.Schema.Validate(obj, partial)
		if err != nil {
			verr.Merge(prefix, err.(*ValidationError))
			continue
		}
		out = append(out, val)
	}
	if !verr.Empty() {
		return nil, verr
	}
	return out, nil
}

func convert(f Field, v interface{}) (interface{}, string) {
	switch f.Kind {
	case Integer:
		n, ok := ToInt64(v)
		if !ok {
			return nil, msgInvalidInt
		}
		return n, ""
	case Number:
		n, ok := toFloat64(v)
		if !ok {
			return nil, msgInvalidNumber
		}
		return n, ""
	case String:
		var str string
		switch t := v.(type) {
		case string:
			str = t
		case json.Number:
			str = t.String()
		default:
			return nil, msgInvalidString
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil, msgBlank
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(str) > f.MaxLength {
			return nil, msgMaxLength(f.MaxLength)
		}
		return str, ""
	}
	return nil, fmt.Sprintf("unsupported field kind %d", f.Kind)
}

// ToInt64 converts a decoded JSON value to an integer. Integral floats and
// numeric strings are accepted.
func ToInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return floatToInt(t)
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asObject(v interface{}) (Payload, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return Payload(t), true
	case Payload:
		return t, true
	}
	return nil, false
}

// AsObject reports whether v is a JSON object.
func AsObject(v interface{}) (Payload, bool) {
	return asObject(v)
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, int, int64, float64:
		return "number"
	case []interface{}, []Payload:
		return "list"
	case map[string]interface{}, Payload:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// Columns maps validated field names to store columns, skipping nested fields.
func (s *Schema) Columns(data Payload) map[string]interface{} {
	cols := make(map[string]interface{}, len(data))
	for name, v := range data {
		f, ok := s.Field(name)
		if !ok || f.Kind == Nested {
			continue
		}
		cols[f.column()] = v
	}
	return cols
}

// Decode copies validated scalar fields into record.
func (s *Schema) Decode(data Payload, record interface{}) error {
	scalars := make(map[string]interface{}, len(data))
	for name, v := range data {
		f, ok := s.Field(name)
		if !ok || f.Kind == Nested {
			continue
		}
		scalars[name] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  record,
		TagName: "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to build %s decoder: %w", s.Name, err)
	}
	if err := dec.Decode(scalars); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.Name, err)
	}
	return nil
}
