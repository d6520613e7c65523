package query

import (
	"fmt"

	"github.com/entidb/entidb/value"
)

// Node is the round-trippable serialized form of a Query tree
// (spec.md §6): a discriminated "type" tag plus type-specific fields,
// suitable for storing a saved query or sending one across a process
// boundary. Encode/Decode convert between Query and Node. value.Value
// has no JSON or YAML encoding of its own (its fields are unexported),
// so marshaling a Node with encoding/json or yaml does not preserve
// Value, Lo, Hi or Values.
type Node struct {
	Type string `yaml:"type" json:"type"`

	Field         string        `yaml:"field,omitempty" json:"field,omitempty"`
	Value         *value.Value  `yaml:"value,omitempty" json:"value,omitempty"`
	Lo            *value.Value  `yaml:"lo,omitempty" json:"lo,omitempty"`
	Hi            *value.Value  `yaml:"hi,omitempty" json:"hi,omitempty"`
	IncludeLower  bool          `yaml:"include_lower,omitempty" json:"include_lower,omitempty"`
	IncludeUpper  bool          `yaml:"include_upper,omitempty" json:"include_upper,omitempty"`
	Values        []value.Value `yaml:"values,omitempty" json:"values,omitempty"`
	CaseSensitive bool          `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Pattern       string        `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Flags         string        `yaml:"flags,omitempty" json:"flags,omitempty"`
	Terms         []string      `yaml:"terms,omitempty" json:"terms,omitempty"`
	MaxDistance   int           `yaml:"max_distance,omitempty" json:"max_distance,omitempty"`
	Clauses       []Node        `yaml:"clauses,omitempty" json:"clauses,omitempty"`
}

// Encode converts a Query tree into its serialized Node form.
func Encode(q Query) (Node, error) {
	switch t := q.(type) {
	case All:
		return Node{Type: "all"}, nil
	case Equals:
		return Node{Type: "equals", Field: t.FieldName, Value: &t.Value}, nil
	case NotEquals:
		return Node{Type: "not_equals", Field: t.FieldName, Value: &t.Value}, nil
	case comparison:
		return Node{Type: comparisonTypeName(t.op), Field: t.FieldName, Value: &t.Value}, nil
	case Between:
		return Node{
			Type: "between", Field: t.FieldName,
			Lo: &t.Lo, Hi: &t.Hi,
			IncludeLower: t.IncludeLower, IncludeUpper: t.IncludeUpper,
		}, nil
	case In:
		return Node{Type: "in", Field: t.FieldName, Values: t.Values}, nil
	case NotIn:
		return Node{Type: "not_in", Field: t.FieldName, Values: t.Values}, nil
	case Exists:
		return Node{Type: "exists", Field: t.FieldName}, nil
	case IsNull:
		return Node{Type: "is_null", Field: t.FieldName}, nil
	case IsNotNull:
		return Node{Type: "is_not_null", Field: t.FieldName}, nil
	case Contains:
		return Node{Type: "contains", Field: t.FieldName, Value: &t.Value, CaseSensitive: t.CaseSensitive}, nil
	case edgeMatch:
		return Node{Type: edgeTypeName(t.op), Field: t.FieldName, Pattern: t.Value, CaseSensitive: t.CaseSensitive}, nil
	case Regex:
		return Node{Type: "regex", Field: t.FieldName, Pattern: t.Pattern, Flags: t.Flags}, nil
	case FullTextQuery:
		return Node{Type: "fulltext", Field: t.FieldName, Terms: t.Terms}, nil
	case FullTextAnyQuery:
		return Node{Type: "fulltext_any", Field: t.FieldName, Terms: t.Terms}, nil
	case FullTextPhraseQuery:
		return Node{Type: "fulltext_phrase", Field: t.FieldName, Terms: t.Terms}, nil
	case FullTextPrefixQuery:
		return Node{Type: "fulltext_prefix", Field: t.FieldName, Pattern: t.Prefix}, nil
	case FullTextProximityQuery:
		return Node{Type: "fulltext_proximity", Field: t.FieldName, Terms: t.Terms, MaxDistance: t.MaxDistance}, nil
	case And:
		clauses, err := encodeAll(t.Clauses)
		if err != nil {
			return Node{}, err
		}
		return Node{Type: "and", Clauses: clauses}, nil
	case Or:
		clauses, err := encodeAll(t.Clauses)
		if err != nil {
			return Node{}, err
		}
		return Node{Type: "or", Clauses: clauses}, nil
	case Not:
		clause, err := Encode(t.Clause)
		if err != nil {
			return Node{}, err
		}
		return Node{Type: "not", Clauses: []Node{clause}}, nil
	default:
		return Node{}, fmt.Errorf("query: cannot encode node of type %T", q)
	}
}

func encodeAll(qs []Query) ([]Node, error) {
	out := make([]Node, len(qs))
	for i, q := range qs {
		n, err := Encode(q)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func comparisonTypeName(op cmpOp) string {
	switch op {
	case opGT:
		return "gt"
	case opGTE:
		return "gte"
	case opLT:
		return "lt"
	default:
		return "lte"
	}
}

func edgeTypeName(op edgeOp) string {
	if op == opStartsWith {
		return "starts_with"
	}
	return "ends_with"
}

// Decode rebuilds a Query tree from its serialized Node form.
func Decode(n Node) (Query, error) {
	switch n.Type {
	case "all":
		return All{}, nil
	case "equals":
		return Equals{FieldName: n.Field, Value: valueOrNull(n.Value)}, nil
	case "not_equals":
		return NotEquals{FieldName: n.Field, Value: valueOrNull(n.Value)}, nil
	case "gt":
		return GreaterThan(n.Field, valueOrNull(n.Value)), nil
	case "gte":
		return GreaterThanOrEquals(n.Field, valueOrNull(n.Value)), nil
	case "lt":
		return LessThan(n.Field, valueOrNull(n.Value)), nil
	case "lte":
		return LessThanOrEquals(n.Field, valueOrNull(n.Value)), nil
	case "between":
		return Between{
			FieldName: n.Field, Lo: valueOrNull(n.Lo), Hi: valueOrNull(n.Hi),
			IncludeLower: n.IncludeLower, IncludeUpper: n.IncludeUpper,
		}, nil
	case "in":
		return In{FieldName: n.Field, Values: n.Values}, nil
	case "not_in":
		return NotIn{FieldName: n.Field, Values: n.Values}, nil
	case "exists":
		return Exists{FieldName: n.Field}, nil
	case "is_null":
		return IsNull{FieldName: n.Field}, nil
	case "is_not_null":
		return IsNotNull{FieldName: n.Field}, nil
	case "contains":
		return Contains{FieldName: n.Field, Value: valueOrNull(n.Value), CaseSensitive: n.CaseSensitive}, nil
	case "starts_with":
		return edgeMatch{FieldName: n.Field, Value: n.Pattern, CaseSensitive: n.CaseSensitive, op: opStartsWith}, nil
	case "ends_with":
		return edgeMatch{FieldName: n.Field, Value: n.Pattern, CaseSensitive: n.CaseSensitive, op: opEndsWith}, nil
	case "regex":
		return NewRegex(n.Field, n.Pattern, n.Flags)
	case "fulltext":
		return FullTextQuery{FieldName: n.Field, Terms: n.Terms}, nil
	case "fulltext_any":
		return FullTextAnyQuery{FieldName: n.Field, Terms: n.Terms}, nil
	case "fulltext_phrase":
		return FullTextPhraseQuery{FieldName: n.Field, Terms: n.Terms}, nil
	case "fulltext_prefix":
		return FullTextPrefixQuery{FieldName: n.Field, Prefix: n.Pattern}, nil
	case "fulltext_proximity":
		return FullTextProximityQuery{FieldName: n.Field, Terms: n.Terms, MaxDistance: n.MaxDistance}, nil
	case "and":
		clauses, err := decodeAll(n.Clauses)
		if err != nil {
			return nil, err
		}
		q, ok := NewAnd(clauses...)
		if !ok {
			return nil, fmt.Errorf("query: 'and' node must have at least one clause")
		}
		return q, nil
	case "or":
		clauses, err := decodeAll(n.Clauses)
		if err != nil {
			return nil, err
		}
		q, ok := NewOr(clauses...)
		if !ok {
			return nil, fmt.Errorf("query: 'or' node must have at least one clause")
		}
		return q, nil
	case "not":
		if len(n.Clauses) != 1 {
			return nil, fmt.Errorf("query: 'not' node must have exactly one clause")
		}
		inner, err := Decode(n.Clauses[0])
		if err != nil {
			return nil, err
		}
		return Not{Clause: inner}, nil
	default:
		return nil, fmt.Errorf("query: unknown node type %q", n.Type)
	}
}

func decodeAll(ns []Node) ([]Query, error) {
	out := make([]Query, len(ns))
	for i, n := range ns {
		q, err := Decode(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func valueOrNull(v *value.Value) value.Value {
	if v == nil {
		return value.Null()
	}
	return *v
}
