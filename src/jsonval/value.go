// Package jsonval provides a small tagged-union representation of JSON
// values. It exists so that connector body templates and response payloads
// can be walked and rewritten with typed recursion instead of untyped
// map[string]interface{} plumbing.
package jsonval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which JSON type a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// String returns the kind name, mostly for error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is an immutable JSON value. The zero value is JSON null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  map[string]Value
	arr  []Value
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// String returns a JSON string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a JSON number value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a JSON boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Object returns a JSON object value. The map is not copied; callers must
// not mutate it afterwards.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

// Array returns a JSON array value.
func Array(items []Value) Value { return Value{kind: KindArray, arr: items} }

// Kind reports the JSON type held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload. It is only meaningful for KindString.
func (v Value) Str() string { return v.str }

// Num returns the number payload. It is only meaningful for KindNumber.
func (v Value) Num() float64 { return v.num }

// BoolVal returns the boolean payload. It is only meaningful for KindBool.
func (v Value) BoolVal() bool { return v.b }

// Field returns the named field of an object value. The second return is
// false when v is not an object or the field is absent.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	f, ok := v.obj[name]
	return f, ok
}

// Fields returns the field names of an object value in sorted order.
func (v Value) Fields() []string {
	if v.kind != KindObject {
		return nil
	}
	names := make([]string, 0, len(v.obj))
	for name := range v.obj {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Items returns the elements of an array value.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Text renders a scalar value the way a string template would see it:
// strings verbatim, numbers without a trailing ".0" when integral, booleans
// as "true"/"false". Objects and arrays render as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNull:
		return ""
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Interface converts v into the interface{} shape produced by
// encoding/json, suitable for handing to APIs that expect untyped JSON.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.Interface()
		}
		return out
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts an encoding/json-shaped interface{} into a Value.
func FromInterface(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), err
		}
		return Number(f), nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, raw := range t {
			v, err := FromInterface(raw)
			if err != nil {
				return Null(), err
			}
			fields[k] = v
		}
		return Object(fields), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, raw := range t {
			v, err := FromInterface(raw)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return Array(items), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", x)
	}
}

// Parse decodes raw JSON into a Value.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Null(), err
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Object keys serialize in sorted
// order, matching encoding/json map behavior.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
