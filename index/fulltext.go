package index

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// defaultStopWords is a small, overridable English stop-word list
// (spec.md §4.2: "a standard small English stop-word list, overridable
// or empty"). Keep it short: this is meant to filter noise, not do
// real NLP.
var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {},
}

// MinTokenLength is the default minimum token length; shorter tokens
// are dropped as noise.
const MinTokenLength = 2

// Tokenize splits s into lower-cased word tokens, dropping anything
// shorter than MinTokenLength and anything in stopWords. A nil
// stopWords map disables stop-word filtering entirely.
func Tokenize(s string, stopWords map[string]struct{}) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if len(f) < MinTokenLength {
			continue
		}
		if stopWords != nil {
			if _, stop := stopWords[f]; stop {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

type posting struct {
	positions []int
}

// FullTextIndex maintains an inverted index (term -> id -> positions)
// and a forward index (id -> distinct terms) so Remove is O(terms in
// that entity) rather than a full inverted-index scan.
type FullTextIndex struct {
	field     string
	stopWords map[string]struct{}

	mu       sync.RWMutex
	inverted map[string]map[string]*posting // term -> id -> posting
	forward  map[string][]string            // id -> terms present
}

func NewFullText(field string) *FullTextIndex {
	return &FullTextIndex{
		field:     field,
		stopWords: defaultStopWords,
		inverted:  make(map[string]map[string]*posting),
		forward:   make(map[string][]string),
	}
}

// SetStopWords overrides the stop-word list; pass an empty (non-nil)
// map to disable filtering, or nil to restore the default list.
func (f *FullTextIndex) SetStopWords(stopWords map[string]struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stopWords == nil {
		f.stopWords = defaultStopWords
		return
	}
	f.stopWords = stopWords
}

func (f *FullTextIndex) Field() string    { return f.field }
func (f *FullTextIndex) Variant() Variant { return VariantFullText }

func (f *FullTextIndex) Insert(id string, entity storage.Entity) {
	v, ok := fieldValue(f.field, entity)
	if !ok {
		return
	}
	text, isStr := v.Str()
	if !isStr {
		return
	}
	tokens := Tokenize(text, f.stopWords)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(id)
	if len(tokens) == 0 {
		return
	}
	seen := make(map[string]struct{})
	for pos, tok := range tokens {
		byID, ok := f.inverted[tok]
		if !ok {
			byID = make(map[string]*posting)
			f.inverted[tok] = byID
		}
		p, ok := byID[id]
		if !ok {
			p = &posting{}
			byID[id] = p
		}
		p.positions = append(p.positions, pos)
		seen[tok] = struct{}{}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	f.forward[id] = terms
}

func (f *FullTextIndex) Remove(id string, _ storage.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(id)
}

func (f *FullTextIndex) removeLocked(id string) {
	terms, ok := f.forward[id]
	if !ok {
		return
	}
	for _, t := range terms {
		byID := f.inverted[t]
		delete(byID, id)
		if len(byID) == 0 {
			delete(f.inverted, t)
		}
	}
	delete(f.forward, id)
}

// Search performs a single-term lookup; callers wanting multi-term OR
// semantics should use SearchAny, and the Query layer composes the
// richer node types on top of these primitives. Ids come back sorted
// ascending; insertion order is not tracked by this variant.
func (f *FullTextIndex) Search(key value.Value) []string {
	term, ok := key.Str()
	if !ok {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	byID, ok := f.inverted[strings.ToLower(term)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byID))
	for id := range byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SearchAny matches ids containing at least one of terms (an OR).
func (f *FullTextIndex) SearchAny(terms []string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, t := range terms {
		byID, ok := f.inverted[strings.ToLower(t)]
		if !ok {
			continue
		}
		for id := range byID {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// SearchAll matches ids containing every one of terms (an AND).
func (f *FullTextIndex) SearchAll(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	var sets [][]string
	for _, t := range terms {
		byID, ok := f.inverted[strings.ToLower(t)]
		if !ok {
			return nil
		}
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		sets = append(sets, ids)
	}
	return IntersectPreserveOrder(sets...)
}

// SearchPhrase matches ids where terms occur consecutively, in order.
func (f *FullTextIndex) SearchPhrase(terms []string) []string {
	return f.searchOrdered(terms, 1, true)
}

// SearchProximity matches ids where every later term occurs within
// maxDistance token positions of one occurrence of the first term,
// order not required. Later terms are compared with that first-term
// occurrence only, not with each other.
func (f *FullTextIndex) SearchProximity(terms []string, maxDistance int) []string {
	return f.searchOrdered(terms, maxDistance, false)
}

func (f *FullTextIndex) searchOrdered(terms []string, maxDistance int, strictOrder bool) []string {
	if len(terms) == 0 {
		return nil
	}
	if len(terms) == 1 {
		return f.SearchAll(terms)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	candidates := f.SearchAll(terms)
	var out []string
	for _, id := range candidates {
		if f.matchesWindow(id, terms, maxDistance, strictOrder) {
			out = append(out, id)
		}
	}
	return out
}

// matchesWindow reports whether id's posting lists place every term
// within maxDistance positions of a common anchor, honoring order
// when strictOrder is set. Callers must hold at least a read lock.
func (f *FullTextIndex) matchesWindow(id string, terms []string, maxDistance int, strictOrder bool) bool {
	firstTerm := strings.ToLower(terms[0])
	anchors := f.inverted[firstTerm][id]
	if anchors == nil {
		return false
	}
	for _, anchor := range anchors.positions {
		allOK := true
		for i, t := range terms {
			if i == 0 {
				continue
			}
			p := f.inverted[strings.ToLower(t)][id]
			if p == nil {
				allOK = false
				break
			}
			if !hasPositionWithin(p.positions, anchor, i, maxDistance, strictOrder) {
				allOK = false
				break
			}
		}
		if allOK {
			return true
		}
	}
	return false
}

func hasPositionWithin(positions []int, anchor, offset, maxDistance int, strictOrder bool) bool {
	for _, pos := range positions {
		if strictOrder {
			if pos == anchor+offset {
				return true
			}
			continue
		}
		d := pos - anchor
		if d < 0 {
			d = -d
		}
		if d <= maxDistance {
			return true
		}
	}
	return false
}

// SearchPrefix matches ids whose indexed tokens start with prefix.
func (f *FullTextIndex) SearchPrefix(prefix string) []string {
	prefix = strings.ToLower(prefix)
	f.mu.RLock()
	defer f.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for term, byID := range f.inverted {
		if !strings.HasPrefix(term, prefix) {
			continue
		}
		for id := range byID {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Scored is a ranked full-text search hit.
type Scored struct {
	ID    string
	Score float64
}

// SearchRanked scores candidate matches by TF-IDF summed across terms,
// breaking ties by id ascending for determinism.
func (f *FullTextIndex) SearchRanked(terms []string) []Scored {
	f.mu.RLock()
	defer f.mu.RUnlock()

	totalDocs := len(f.forward)
	if totalDocs == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, t := range terms {
		byID, ok := f.inverted[strings.ToLower(t)]
		if !ok {
			continue
		}
		idf := math.Log(float64(totalDocs) / float64(len(byID)))
		for id, p := range byID {
			tf := float64(len(p.positions))
			scores[id] += tf * idf
		}
	}

	out := make([]Scored, 0, len(scores))
	for id, s := range scores {
		out = append(out, Scored{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *FullTextIndex) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inverted = make(map[string]map[string]*posting)
	f.forward = make(map[string][]string)
}

// ToMap serializes the inverted index as term -> ids (positions are
// not persisted; only a later Insert of the original text, e.g. via
// Manager.RebuildAll, restores them).
func (f *FullTextIndex) ToMap() map[string][]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]string, len(f.inverted))
	for term, byID := range f.inverted {
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[term] = ids
	}
	return out
}

// RestoreFromMap restores only term membership (not positions), since
// positional data is not stored in ToMap's compact form. Until the
// entities are inserted again (Manager.RebuildAll), phrase and
// proximity searches find no matches and ranked scores are zero.
func (f *FullTextIndex) RestoreFromMap(m map[string][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inverted = make(map[string]map[string]*posting, len(m))
	f.forward = make(map[string][]string)
	for term, ids := range m {
		byID := make(map[string]*posting, len(ids))
		for _, id := range ids {
			byID[id] = &posting{positions: nil}
			f.forward[id] = append(f.forward[id], term)
		}
		f.inverted[term] = byID
	}
}

var _ Index = (*FullTextIndex)(nil)
