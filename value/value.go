// Package value implements the tagged attribute value that backs every
// entity's key→attribute map: a recursive sum of Null, Bool, Int, Float,
// String, Bytes, Time, an ordered Seq, and a nested Map.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which alternative of the Value sum is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindTime
	KindSeq
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged union representing one node of an
// attribute map: a primitive scalar, an ordered sequence of values, or a
// nested string-keyed map of values. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	bytes []byte
	t     time.Time
	seq   []Value
	m     map[string]Value
}

// Null returns the Null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a 64-bit float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes wraps a byte slice; the slice is not copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

// Time wraps a timestamp. Timestamps are Comparable and usable as
// ordered-index keys alongside ints/floats/strings.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Seq wraps an ordered sequence of values.
func Seq(vs []Value) Value { return Value{kind: KindSeq, seq: vs} }

// Map wraps a nested string-keyed map of values.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool)         { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool)         { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool)     { return v.f, v.kind == KindFloat }
func (v Value) Str() (string, bool)        { return v.s, v.kind == KindString }
func (v Value) Bytes() ([]byte, bool)      { return v.bytes, v.kind == KindBytes }
func (v Value) Time() (time.Time, bool)    { return v.t, v.kind == KindTime }
func (v Value) Seq() ([]Value, bool)       { return v.seq, v.kind == KindSeq }
func (v Value) Map() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// AsString renders the value as a human string. It is used for
// diagnostics and as the fallback encoding of index keys; Contains /
// StartsWith / EndsWith and full-text tokenization do not use it and
// read string values only.
func (v Value) AsString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBytes:
		return string(v.bytes)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v.Raw())
	}
}

// Raw converts the Value back to a plain Go interface{}, the shape a
// Storage Port or a serializer would receive.
func (v Value) Raw() interface{} {
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
	case KindBytes:
		return v.bytes
	case KindTime:
		return v.t
	case KindSeq:
		out := make([]interface{}, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Raw()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = e.Raw()
		}
		return out
	default:
		return nil
	}
}

// From converts a plain Go interface{} (the shape a Storage Port hands
// back) into a Value. Unrecognized concrete types are coerced to
// String via fmt.Sprintf as a last resort rather than panicking, since
// storage backends may surface driver-specific scalar types.
func From(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case Value:
		return x
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
	case []byte:
		return Bytes(x)
	case time.Time:
		return Time(x)
	case []interface{}:
		seq := make([]Value, len(x))
		for i, e := range x {
			seq[i] = From(e)
		}
		return Seq(seq)
	case []Value:
		return Seq(x)
	case map[string]interface{}:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = From(e)
		}
		return Map(m)
	case map[string]Value:
		return Map(x)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// MapFromRaw converts a plain map[string]interface{} attribute map into
// map[string]Value, the shape the core operates on internally.
func MapFromRaw(raw map[string]interface{}) map[string]Value {
	out := make(map[string]Value, len(raw))
	for k, v := range raw {
		out[k] = From(v)
	}
	return out
}

// RawFromMap is the inverse of MapFromRaw, producing the attribute map
// shape a Storage Port stores.
func RawFromMap(m map[string]Value) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.Raw()
	}
	return out
}

// Equal implements the structural deep-equality spec.md §9 asks
// implementers to prefer over same-instance comparisons: lists compare
// element-wise, maps compare by key/value content.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// Int/Float are cross-comparable for equality purposes: 3 == 3.0
		if (a.kind == KindInt && b.kind == KindFloat) || (a.kind == KindFloat && b.kind == KindInt) {
			af, _ := asFloat(a)
			bf, _ := asFloat(b)
			return af == bf
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBytes:
		return string(a.bytes) == string(b.bytes)
	case KindTime:
		return a.t.Equal(b.t)
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asFloat(v Value) (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Comparable reports whether two values can be ordered relative to one
// another (used by the ordered index and Between/GreaterThan queries).
// Booleans are explicitly excluded per spec.md §6: "Booleans are not
// permitted as ordered-index keys."
func Comparable(a, b Value) bool {
	switch a.kind {
	case KindInt, KindFloat:
		return b.kind == KindInt || b.kind == KindFloat
	case KindString:
		return b.kind == KindString
	case KindTime:
		return b.kind == KindTime
	default:
		return false
	}
}

// Compare orders two Comparable values: negative if a < b, zero if
// equal, positive if a > b. Panics if the values are not Comparable —
// callers (the ordered index) must guarantee homogeneous key types
// per spec.md §4.2's "implementation error the caller must prevent".
func Compare(a, b Value) int {
	if !Comparable(a, b) {
		panic(fmt.Sprintf("value: incomparable kinds %s and %s", a.kind, b.kind))
	}
	switch a.kind {
	case KindInt, KindFloat:
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindTime:
		switch {
		case a.t.Before(b.t):
			return -1
		case a.t.After(b.t):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Less reports a < b for Comparable values; used for sort.Slice.
func Less(a, b Value) bool { return Compare(a, b) < 0 }

// ResolvePath walks a dot-path ("address.city") through a nested
// attribute map, returning the resolved Value and whether the full
// path existed. A missing intermediate key or a path that descends
// into a non-map value returns (Null(), false).
func ResolvePath(m map[string]Value, path string) (Value, bool) {
	parts := strings.Split(path, ".")
	cur := m
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return Null(), false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.Map()
		if !ok {
			return Null(), false
		}
		cur = next
	}
	return Null(), false
}

// SortedKeys returns the keys of a map in sorted order, for callers
// that need a stable iteration order over a map.
func SortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
