// Package value defines the closed value tree that document sources are
// decoded into. Every document pulled from the store becomes one of the six
// kinds below, so downstream comparison and serialization never meet a type
// they do not recognize.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is the closed union of document tree nodes. The unexported method
// keeps the set of implementations fixed to the types in this package.
type Value interface {
	Kind() Kind
	appendCanonical(b *strings.Builder)
}

// Null is the JSON null value.
type Null struct{}

// Bool is a boolean leaf.
type Bool bool

// Number is a numeric leaf holding the original JSON literal, so integer
// precision survives a decode/encode round trip.
type Number string

// String is a string leaf.
type String string

// Sequence is an ordered list of values.
type Sequence []Value

// Field is one key/value entry of a Mapping.
type Field struct {
	Key string
	Val Value
}

// Mapping is an ordered list of string-keyed fields.
type Mapping []Field

func (Null) Kind() Kind     { return KindNull }
func (Bool) Kind() Kind     { return KindBool }
func (Number) Kind() Kind   { return KindNumber }
func (String) Kind() Kind   { return KindString }
func (Sequence) Kind() Kind { return KindSequence }
func (Mapping) Kind() Kind  { return KindMapping }

// Get returns the value stored under key, if present.
func (m Mapping) Get(key string) (Value, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Val, true
		}
	}
	return nil, false
}

// Float returns the number as a float64 and whether the literal parsed.
func (n Number) Float() (float64, bool) {
	f, err := strconv.ParseFloat(string(n), 64)
	return f, err == nil
}

// NumEqual reports whether two numeric literals denote the same number.
// Literals that do not parse fall back to textual comparison.
func NumEqual(a, b Number) bool {
	fa, oka := a.Float()
	fb, okb := b.Float()
	if oka && okb {
		return fa == fb
	}
	return a == b
}

// FromJSON decodes a JSON document into a Value.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return FromAny(raw)
}

// FromAny converts a decoded JSON value (or plain Go literals in tests)
// into the closed tree.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t.String()), nil
	case string:
		return String(t), nil
	case int:
		return Number(strconv.Itoa(t)), nil
	case int64:
		return Number(strconv.FormatInt(t, 10)), nil
	case float64:
		return Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case []any:
		seq := make(Sequence, 0, len(t))
		for _, el := range t {
			v, err := FromAny(el)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := make(Mapping, 0, len(t))
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return nil, err
			}
			m = append(m, Field{Key: k, Val: v})
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Canonical returns a deep copy in canonical form: mapping fields sorted by
// key and sequence elements sorted by their canonical encoding. Two trees
// that differ only in sequence order share one canonical form, which is what
// makes order-independent comparison a plain structural walk.
func Canonical(v Value) Value {
	switch t := v.(type) {
	case Sequence:
		cs := make(Sequence, len(t))
		for i := range t {
			cs[i] = Canonical(t[i])
		}
		sort.SliceStable(cs, func(i, j int) bool {
			return CanonicalKey(cs[i]) < CanonicalKey(cs[j])
		})
		return cs
	case Mapping:
		cm := make(Mapping, len(t))
		for i := range t {
			cm[i] = Field{Key: t[i].Key, Val: Canonical(t[i].Val)}
		}
		sort.SliceStable(cm, func(i, j int) bool { return cm[i].Key < cm[j].Key })
		return cm
	default:
		return v
	}
}

// CanonicalKey returns a deterministic textual encoding of a value, used to
// order sequence elements. Numbers are normalized so 1 and 1.0 encode alike.
func CanonicalKey(v Value) string {
	var b strings.Builder
	v.appendCanonical(&b)
	return b.String()
}

func (Null) appendCanonical(b *strings.Builder) { b.WriteString("z:null") }

func (v Bool) appendCanonical(b *strings.Builder) {
	b.WriteString("b:")
	b.WriteString(strconv.FormatBool(bool(v)))
}

func (n Number) appendCanonical(b *strings.Builder) {
	b.WriteString("n:")
	if f, ok := n.Float(); ok {
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	} else {
		b.WriteString(string(n))
	}
}

func (s String) appendCanonical(b *strings.Builder) {
	b.WriteString("s:")
	b.WriteString(strconv.Quote(string(s)))
}

func (seq Sequence) appendCanonical(b *strings.Builder) {
	b.WriteByte('[')
	for i, el := range seq {
		if i > 0 {
			b.WriteByte(',')
		}
		el.appendCanonical(b)
	}
	b.WriteByte(']')
}

func (m Mapping) appendCanonical(b *strings.Builder) {
	b.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(f.Key))
		b.WriteByte(':')
		f.Val.appendCanonical(b)
	}
	b.WriteByte('}')
}

// MarshalJSON implementations keep the tree serializable with either the
// standard library or goccy encoders.

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (v Bool) MarshalJSON() ([]byte, error) {
	return strconv.AppendBool(nil, bool(v)), nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if _, ok := n.Float(); ok {
		return []byte(n), nil
	}
	// Malformed literal, emit as a quoted string rather than invalid JSON.
	return json.Marshal(string(n))
}

func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (seq Sequence) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, el := range seq {
		if i > 0 {
			b.WriteByte(',')
		}
		data, err := json.Marshal(el)
		if err != nil {
			return nil, err
		}
		b.Write(data)
	}
	b.WriteByte(']')
	return []byte(b.String()), nil
}

func (m Mapping) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		data, err := json.Marshal(f.Val)
		if err != nil {
			return nil, err
		}
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
