package index

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/entidb/entidb/value"
)

// encodeKey produces a stable, self-describing string encoding of a
// Value suitable as a Go map key and as the on-disk key field
// (persistence.go): a one-letter type tag followed by the value's
// canonical text form, so string "3" and int 3 and float 3.0 never
// collide and all round-trip through decodeKey.
func encodeKey(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.Str()
		return "s:" + s
	case value.KindInt:
		i, _ := v.Int()
		return "i:" + strconv.FormatInt(i, 10)
	case value.KindFloat:
		f, _ := v.Float()
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	case value.KindTime:
		t, _ := v.Time()
		return "t:" + t.UTC().Format(time.RFC3339Nano)
	case value.KindBool:
		// Not permitted as an ordered-index key per spec.md §6, but
		// hash indexes may still key on booleans.
		b, _ := v.Bool()
		return "b:" + strconv.FormatBool(b)
	default:
		return "x:" + v.AsString()
	}
}

// decodeKey is the inverse of encodeKey, used when restoring an index
// from its persisted map-of-keys form.
func decodeKey(s string) (value.Value, error) {
	if len(s) < 2 || s[1] != ':' {
		return value.Null(), fmt.Errorf("index: malformed encoded key %q", s)
	}
	tag, rest := s[0], s[2:]
	switch tag {
	case 's':
		return value.String(rest), nil
	case 'i':
		i, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return value.Null(), fmt.Errorf("index: bad int key %q: %w", s, err)
		}
		return value.Int(i), nil
	case 'f':
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return value.Null(), fmt.Errorf("index: bad float key %q: %w", s, err)
		}
		return value.Float(f), nil
	case 't':
		t, err := time.Parse(time.RFC3339Nano, rest)
		if err != nil {
			return value.Null(), fmt.Errorf("index: bad time key %q: %w", s, err)
		}
		return value.Time(t), nil
	case 'b':
		b, err := strconv.ParseBool(rest)
		if err != nil {
			return value.Null(), fmt.Errorf("index: bad bool key %q: %w", s, err)
		}
		return value.Bool(b), nil
	default:
		return value.String(strings.TrimPrefix(s, "x:")), nil
	}
}
