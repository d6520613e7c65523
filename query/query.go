// Package query implements EntiDB's predicate query language (spec.md
// §6): a tree of predicate nodes, each with in-memory matches()
// semantics and a round-trippable serialized form.
package query

import (
	"regexp"
	"strings"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Query is satisfied by every predicate node.
type Query interface {
	// Matches reports whether the given attribute map satisfies the
	// predicate.
	Matches(attrs storage.Entity) bool
}

// Fielded is implemented by single-field predicates, letting the
// collection planner (§4.3) recognize which conjuncts are indexable.
type Fielded interface {
	Field() string
}

// ---- All ----

type All struct{}

func (All) Matches(storage.Entity) bool { return true }

// ---- Equals / NotEquals ----

type Equals struct {
	FieldName string
	Value     value.Value
}

func (q Equals) Field() string { return q.FieldName }
func (q Equals) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok {
		return false
	}
	return value.Equal(v, q.Value)
}

// NotEquals treats a missing field as "not equal" (true), per spec.md §6.
type NotEquals struct {
	FieldName string
	Value     value.Value
}

func (q NotEquals) Field() string { return q.FieldName }
func (q NotEquals) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok {
		return true
	}
	return !value.Equal(v, q.Value)
}

// ---- Ordering comparisons ----

type cmpOp int

const (
	opGT cmpOp = iota
	opGTE
	opLT
	opLTE
)

type comparison struct {
	FieldName string
	Value     value.Value
	op        cmpOp
}

func (q comparison) Field() string { return q.FieldName }
func (q comparison) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok || v.IsNull() || !value.Comparable(v, q.Value) {
		return false
	}
	c := value.Compare(v, q.Value)
	switch q.op {
	case opGT:
		return c > 0
	case opGTE:
		return c >= 0
	case opLT:
		return c < 0
	case opLTE:
		return c <= 0
	default:
		return false
	}
}

func GreaterThan(field string, v value.Value) Query        { return comparison{field, v, opGT} }
func GreaterThanOrEquals(field string, v value.Value) Query { return comparison{field, v, opGTE} }
func LessThan(field string, v value.Value) Query            { return comparison{field, v, opLT} }
func LessThanOrEquals(field string, v value.Value) Query    { return comparison{field, v, opLTE} }

// Ranged is implemented by predicates that express a bound on an
// ordered field (the comparison ops and Between), letting the
// collection planner consult an ordered index's range scan directly
// instead of falling back to a full scan.
type Ranged interface {
	Bounds() (lo, hi *value.Value, includeLower, includeUpper bool)
}

func (q comparison) Bounds() (lo, hi *value.Value, includeLower, includeUpper bool) {
	v := q.Value
	switch q.op {
	case opGT:
		return &v, nil, false, false
	case opGTE:
		return &v, nil, true, false
	case opLT:
		return nil, &v, false, false
	default: // opLTE
		return nil, &v, false, true
	}
}

// ---- Between ----

type Between struct {
	FieldName                   string
	Lo, Hi                      value.Value
	IncludeLower, IncludeUpper  bool
}

// NewBetween applies spec.md's defaults (includeLower=true, includeUpper=true).
func NewBetween(field string, lo, hi value.Value) Between {
	return Between{FieldName: field, Lo: lo, Hi: hi, IncludeLower: true, IncludeUpper: true}
}

func (q Between) Bounds() (lo, hi *value.Value, includeLower, includeUpper bool) {
	l, h := q.Lo, q.Hi
	return &l, &h, q.IncludeLower, q.IncludeUpper
}

func (q Between) Field() string { return q.FieldName }
func (q Between) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok || v.IsNull() {
		return false
	}
	if !value.Comparable(v, q.Lo) || !value.Comparable(v, q.Hi) {
		return false
	}
	loCmp := value.Compare(v, q.Lo)
	hiCmp := value.Compare(v, q.Hi)
	lowOK := loCmp > 0 || (q.IncludeLower && loCmp == 0)
	highOK := hiCmp < 0 || (q.IncludeUpper && hiCmp == 0)
	return lowOK && highOK
}

// ---- In / NotIn ----

type In struct {
	FieldName string
	Values    []value.Value
}

func (q In) Field() string { return q.FieldName }
func (q In) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok {
		return false
	}
	for _, c := range q.Values {
		if value.Equal(v, c) {
			return true
		}
	}
	return false
}

type NotIn struct {
	FieldName string
	Values    []value.Value
}

func (q NotIn) Field() string { return q.FieldName }
func (q NotIn) Matches(attrs storage.Entity) bool {
	return !(In{q.FieldName, q.Values}).Matches(attrs)
}

// ---- Exists / IsNull / IsNotNull ----

type Exists struct{ FieldName string }

func (q Exists) Field() string { return q.FieldName }
func (q Exists) Matches(attrs storage.Entity) bool {
	_, ok := value.ResolvePath(attrs, q.FieldName)
	return ok
}

// IsNull matches if the value is null OR missing, per spec.md §6
// ("missing counts as null").
type IsNull struct{ FieldName string }

func (q IsNull) Field() string { return q.FieldName }
func (q IsNull) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok {
		return true
	}
	return v.IsNull()
}

type IsNotNull struct{ FieldName string }

func (q IsNotNull) Field() string { return q.FieldName }
func (q IsNotNull) Matches(attrs storage.Entity) bool {
	return !(IsNull{q.FieldName}).Matches(attrs)
}

// ---- Contains / StartsWith / EndsWith ----

// Contains matches substrings for strings, membership for sequences,
// and — per SPEC_FULL.md's Open Question decision — structural
// equality membership for map-valued fields (any direct value of the
// map deep-equals the target).
type Contains struct {
	FieldName     string
	Value         value.Value
	CaseSensitive bool
}

// NewContains applies the spec default caseSensitive=true.
func NewContains(field string, v value.Value) Contains {
	return Contains{FieldName: field, Value: v, CaseSensitive: true}
}

func (q Contains) Field() string { return q.FieldName }
func (q Contains) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok {
		return false
	}
	if s, isStr := v.Str(); isStr {
		target, isTargetStr := q.Value.Str()
		if !isTargetStr {
			return false
		}
		if q.CaseSensitive {
			return strings.Contains(s, target)
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(target))
	}
	if seq, isSeq := v.Seq(); isSeq {
		for _, e := range seq {
			if value.Equal(e, q.Value) {
				return true
			}
		}
		return false
	}
	if m, isMap := v.Map(); isMap {
		for _, e := range m {
			if value.Equal(e, q.Value) {
				return true
			}
		}
		return false
	}
	return false
}

type edgeOp int

const (
	opStartsWith edgeOp = iota
	opEndsWith
)

type edgeMatch struct {
	FieldName     string
	Value         string
	CaseSensitive bool
	op            edgeOp
}

func (q edgeMatch) Field() string { return q.FieldName }
func (q edgeMatch) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok {
		return false
	}
	s, isStr := v.Str()
	if !isStr {
		return false
	}
	target := q.Value
	if !q.CaseSensitive {
		s = strings.ToLower(s)
		target = strings.ToLower(target)
	}
	if q.op == opStartsWith {
		return strings.HasPrefix(s, target)
	}
	return strings.HasSuffix(s, target)
}

func NewStartsWith(field, v string) Query { return edgeMatch{field, v, true, opStartsWith} }
func NewEndsWith(field, v string) Query   { return edgeMatch{field, v, true, opEndsWith} }

// ---- Regex ----

type Regex struct {
	FieldName string
	Pattern   string
	Flags     string
	compiled  *regexp.Regexp
}

// NewRegex compiles pattern with the given flags ("i" for
// case-insensitive, matching common regex-flag conventions) up front
// so Matches never returns a compile error.
func NewRegex(field, pattern, flags string) (Regex, error) {
	expr := pattern
	if strings.Contains(flags, "i") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Regex{}, err
	}
	return Regex{FieldName: field, Pattern: pattern, Flags: flags, compiled: re}, nil
}

func (q Regex) Field() string { return q.FieldName }
func (q Regex) Matches(attrs storage.Entity) bool {
	v, ok := value.ResolvePath(attrs, q.FieldName)
	if !ok {
		return false
	}
	s, isStr := v.Str()
	if !isStr {
		return false
	}
	return q.compiled.MatchString(s)
}

// ---- And / Or / Not ----

type And struct{ Clauses []Query }

// NewAnd fails construction on an empty list, per spec.md §6.
func NewAnd(clauses ...Query) (And, bool) {
	if len(clauses) == 0 {
		return And{}, false
	}
	return And{Clauses: clauses}, true
}

func (q And) Matches(attrs storage.Entity) bool {
	for _, c := range q.Clauses {
		if !c.Matches(attrs) {
			return false
		}
	}
	return true
}

type Or struct{ Clauses []Query }

func NewOr(clauses ...Query) (Or, bool) {
	if len(clauses) == 0 {
		return Or{}, false
	}
	return Or{Clauses: clauses}, true
}

func (q Or) Matches(attrs storage.Entity) bool {
	for _, c := range q.Clauses {
		if c.Matches(attrs) {
			return true
		}
	}
	return false
}

type Not struct{ Clause Query }

func (q Not) Matches(attrs storage.Entity) bool { return !q.Clause.Matches(attrs) }
