// Package filter provides the metadata value variant and the
// metadata-predicate language used to filter documents in loomdb
// collections.
//
// Metadata is heterogeneous (string keys to JSON-compatible scalars or
// lists). Rather than passing `any` around and type-switching at every use
// site, this package defines a closed tagged variant, Value, and builds the
// filter language as a sum type over it (see condition.go). Evaluation is a
// switch over the operator tag instead of string-keyed operator dispatch.
package filter

import "fmt"

// Kind discriminates the variant stored in a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is a closed tagged union over the metadata types loomdb supports:
// null, bool, int64, float64, string, list of Value, and map of string to
// Value. Zero Value is KindNull.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an int64.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float64.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a slice of Values.
func List(items []Value) Value { return Value{kind: KindList, list: items} }

// Map wraps a map of string to Value.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// Kind reports the discriminant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns v's boolean value and whether v was actually a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns v's integer value and whether v was actually an int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns v as a float64. Both KindFloat and KindInt convert
// cleanly, since numeric comparisons in the filter language should not care
// which numeric variant a value happens to be stored as.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString returns v's string value and whether v was actually a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsList returns v's list value and whether v was actually a list.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsMap returns v's map value and whether v was actually a map.
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// FromAny converts a dynamically-typed Go value (as decoded from JSON, or
// passed directly by a caller) into a Value. Unsupported types are stored as
// their fmt.Sprintf("%v") string form rather than dropped, so metadata never
// silently vanishes.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case string:
		return String(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromAny(item)
		}
		return List(items)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = FromAny(item)
		}
		return Map(m)
	case []Value:
		return List(x)
	case map[string]Value:
		return Map(x)
	case Value:
		return x
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// ToAny converts v back into a plain Go value suitable for JSON encoding.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether v and other represent the same value. Int and Float
// compare by numeric value so that a filter written as {score: 10} matches
// a metadata value stored as either an int or a float.
func (v Value) Equal(other Value) bool {
	if (v.kind == KindInt || v.kind == KindFloat) && (other.kind == KindInt || other.kind == KindFloat) {
		a, _ := v.AsFloat()
		b, _ := other.AsFloat()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, item := range v.m {
			o, ok := other.m[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders v relative to other for the $gt/$gte/$lt/$lte operators.
// Only numeric-vs-numeric and string-vs-string comparisons are defined;
// anything else returns ok=false.
func (v Value) Compare(other Value) (result int, ok bool) {
	if af, aok := v.AsFloat(); aok {
		if bf, bok := other.AsFloat(); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, aok := v.AsString(); aok {
		if bs, bok := other.AsString(); bok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

// Metadata is the document metadata map: string keys to tagged values.
type Metadata map[string]Value

// MetadataFromAny builds a Metadata map from a map[string]any, as typically
// decoded from a JSON request body.
func MetadataFromAny(m map[string]any) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = FromAny(v)
	}
	return out
}

// ToAny converts Metadata back into a map[string]any for JSON encoding.
func (m Metadata) ToAny() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.ToAny()
	}
	return out
}

// Merge returns a new Metadata with other's keys overlaid on top of m
// (other wins on key collision). Neither input is modified.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of m.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
