package query

import (
	"strings"

	"github.com/entidb/entidb/index"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Full-text query nodes have standalone Matches() semantics: they
// re-tokenize the target field's text on every call rather than
// consulting a live index, so a predicate built from these nodes is
// usable for residual (non-indexed) evaluation in the planner as well
// as for a one-off scan when no full-text index exists on the field.

// fullTextTokens tokenizes the target field's string value the same
// way index.FullTextIndex does, returning ok=false if the field is
// missing or not a string.
func fullTextTokens(attrs storage.Entity, field string) ([]string, bool) {
	v, ok := value.ResolvePath(attrs, field)
	if !ok {
		return nil, false
	}
	s, isStr := v.Str()
	if !isStr {
		return nil, false
	}
	return index.Tokenize(s, nil), true
}

// FullTextQuery matches if the field's tokenized text contains every
// one of Terms (terms are lower-cased before comparison, same as the
// index tokenizer).
type FullTextQuery struct {
	FieldName string
	Terms     []string
}

func (q FullTextQuery) Field() string { return q.FieldName }
func (q FullTextQuery) Matches(attrs storage.Entity) bool {
	tokens, ok := fullTextTokens(attrs, q.FieldName)
	if !ok {
		return false
	}
	present := tokenSet(tokens)
	for _, t := range q.Terms {
		if _, found := present[strings.ToLower(t)]; !found {
			return false
		}
	}
	return true
}

// FullTextAnyQuery matches if the field's tokenized text contains at
// least one of Terms.
type FullTextAnyQuery struct {
	FieldName string
	Terms     []string
}

func (q FullTextAnyQuery) Field() string { return q.FieldName }
func (q FullTextAnyQuery) Matches(attrs storage.Entity) bool {
	tokens, ok := fullTextTokens(attrs, q.FieldName)
	if !ok {
		return false
	}
	present := tokenSet(tokens)
	for _, t := range q.Terms {
		if _, found := present[strings.ToLower(t)]; found {
			return true
		}
	}
	return false
}

// FullTextPhraseQuery matches if Terms occur consecutively, in order,
// anywhere in the field's tokenized text.
type FullTextPhraseQuery struct {
	FieldName string
	Terms     []string
}

func (q FullTextPhraseQuery) Field() string { return q.FieldName }
func (q FullTextPhraseQuery) Matches(attrs storage.Entity) bool {
	tokens, ok := fullTextTokens(attrs, q.FieldName)
	if !ok || len(q.Terms) == 0 || len(q.Terms) > len(tokens) {
		return false
	}
	for start := 0; start+len(q.Terms) <= len(tokens); start++ {
		match := true
		for i, t := range q.Terms {
			if tokens[start+i] != strings.ToLower(t) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// FullTextPrefixQuery matches if any token in the field's tokenized
// text starts with Prefix.
type FullTextPrefixQuery struct {
	FieldName string
	Prefix    string
}

func (q FullTextPrefixQuery) Field() string { return q.FieldName }
func (q FullTextPrefixQuery) Matches(attrs storage.Entity) bool {
	tokens, ok := fullTextTokens(attrs, q.FieldName)
	if !ok {
		return false
	}
	prefix := strings.ToLower(q.Prefix)
	for _, tok := range tokens {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

// FullTextProximityQuery matches if some occurrence of the first term
// has every other term within MaxDistance token positions of it, in
// either direction. The other terms are compared with that occurrence
// only, not with each other.
type FullTextProximityQuery struct {
	FieldName   string
	Terms       []string
	MaxDistance int
}

func (q FullTextProximityQuery) Field() string { return q.FieldName }
func (q FullTextProximityQuery) Matches(attrs storage.Entity) bool {
	tokens, ok := fullTextTokens(attrs, q.FieldName)
	if !ok || len(q.Terms) == 0 {
		return false
	}
	positions := make(map[string][]int)
	for pos, tok := range tokens {
		positions[tok] = append(positions[tok], pos)
	}
	firstPositions, ok := positions[strings.ToLower(q.Terms[0])]
	if !ok {
		return false
	}
	for _, anchor := range firstPositions {
		allWithin := true
		for _, t := range q.Terms[1:] {
			ps, ok := positions[strings.ToLower(t)]
			if !ok {
				allWithin = false
				break
			}
			if !anyWithinDistance(ps, anchor, q.MaxDistance) {
				allWithin = false
				break
			}
		}
		if allWithin {
			return true
		}
	}
	return false
}

func anyWithinDistance(positions []int, anchor, maxDistance int) bool {
	for _, p := range positions {
		d := p - anchor
		if d < 0 {
			d = -d
		}
		if d <= maxDistance {
			return true
		}
	}
	return false
}

func tokenSet(tokens []string) map[string]struct{} {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
