// Package index implements the three index variants of spec.md §4.2:
// ordered (range-capable), hash (equality), and full-text (inverted,
// positional). All three persist to disk and rebuild from storage
// through the Manager.
package index

import (
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Variant names the three supported index kinds.
type Variant string

const (
	VariantOrdered  Variant = "btree"
	VariantHash     Variant = "hash"
	VariantFullText Variant = "fulltext"
)

// Index is the common interface every variant implements (spec.md
// §4.2 "Common interface"). If the field is absent from entityMap,
// Insert/Remove are no-ops.
type Index interface {
	Insert(id string, entity storage.Entity)
	Remove(id string, entity storage.Entity)
	// Search returns ids in insertion-order-preserving iteration order
	// within the key.
	Search(key value.Value) []string
	Clear()
	ToMap() map[string][]string
	RestoreFromMap(m map[string][]string)
	Variant() Variant
	Field() string
}

// fieldValue resolves the dot-path field from an entity, reporting
// whether it was present (and thus indexable for this entity).
func fieldValue(field string, entity storage.Entity) (value.Value, bool) {
	return value.ResolvePath(entity, field)
}

// orderedIDSet preserves insertion order while supporting O(1)
// membership checks and removal — the shape every variant's posting
// list uses internally.
type orderedIDSet struct {
	order []string
	set   map[string]struct{}
}

func newOrderedIDSet() *orderedIDSet {
	return &orderedIDSet{set: make(map[string]struct{})}
}

func (s *orderedIDSet) add(id string) {
	if _, ok := s.set[id]; ok {
		return
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *orderedIDSet) remove(id string) {
	if _, ok := s.set[id]; !ok {
		return
	}
	delete(s.set, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *orderedIDSet) empty() bool { return len(s.order) == 0 }

func (s *orderedIDSet) ids() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// IntersectPreserveOrder intersects candidate id sets, preserving the
// order of the first set — spec.md §4.3 step 2's "Intersect sets".
func IntersectPreserveOrder(sets ...[]string) []string {
	if len(sets) == 0 {
		return nil
	}
	if len(sets) == 1 {
		return sets[0]
	}
	present := make([]map[string]struct{}, len(sets)-1)
	for i, s := range sets[1:] {
		m := make(map[string]struct{}, len(s))
		for _, id := range s {
			m[id] = struct{}{}
		}
		present[i] = m
	}
	var out []string
	for _, id := range sets[0] {
		inAll := true
		for _, m := range present {
			if _, ok := m[id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, id)
		}
	}
	return out
}

// UnionPreserveOrder unions id sets, first-seen order, no duplicates.
func UnionPreserveOrder(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sets {
		for _, id := range s {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
