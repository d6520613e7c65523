package index

import (
	"sort"
	"sync"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// OrderedIndex is backed by a sorted mapping from keys to id sets; it
// supports point lookup and half-open/closed range scans. Keys must be
// mutually Comparable (value.Comparable) — the caller (collection
// runtime) must not insert incomparable key types into the same
// field's index.
type OrderedIndex struct {
	field string

	mu      sync.RWMutex
	entries map[string]*orderedIDSet // encoded key -> ids
	keys    []value.Value            // kept sorted
}

func NewOrdered(field string) *OrderedIndex {
	return &OrderedIndex{field: field, entries: make(map[string]*orderedIDSet)}
}

func (o *OrderedIndex) Field() string     { return o.field }
func (o *OrderedIndex) Variant() Variant { return VariantOrdered }

// insertSortedKey inserts v into o.keys keeping it sorted, unless it
// is already present.
func (o *OrderedIndex) insertSortedKey(v value.Value) {
	i := sort.Search(len(o.keys), func(i int) bool { return !value.Less(o.keys[i], v) })
	if i < len(o.keys) && value.Equal(o.keys[i], v) {
		return
	}
	o.keys = append(o.keys, value.Null())
	copy(o.keys[i+1:], o.keys[i:])
	o.keys[i] = v
}

func (o *OrderedIndex) removeSortedKey(v value.Value) {
	i := sort.Search(len(o.keys), func(i int) bool { return !value.Less(o.keys[i], v) })
	if i < len(o.keys) && value.Equal(o.keys[i], v) {
		o.keys = append(o.keys[:i], o.keys[i+1:]...)
	}
}

func (o *OrderedIndex) Insert(id string, entity storage.Entity) {
	v, ok := fieldValue(o.field, entity)
	if !ok {
		return
	}
	key := encodeKey(v)
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.entries[key]
	if !ok {
		set = newOrderedIDSet()
		o.entries[key] = set
		o.insertSortedKey(v)
	}
	set.add(id)
}

func (o *OrderedIndex) Remove(id string, entity storage.Entity) {
	v, ok := fieldValue(o.field, entity)
	if !ok {
		return
	}
	key := encodeKey(v)
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.entries[key]
	if !ok {
		return
	}
	set.remove(id)
	if set.empty() {
		delete(o.entries, key)
		o.removeSortedKey(v)
	}
}

func (o *OrderedIndex) Search(key value.Value) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	set, ok := o.entries[encodeKey(key)]
	if !ok {
		return nil
	}
	return set.ids()
}

// RangeSearch returns all ids whose key falls within [lo, hi) by
// default (includeLower=true, includeUpper=false per spec.md §4.2). A
// nil bound is unbounded on that side. Results are concatenated in
// ascending key order.
func (o *OrderedIndex) RangeSearch(lo, hi *value.Value, includeLower, includeUpper bool) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []string
	for _, k := range o.keys {
		if lo != nil {
			c := value.Compare(k, *lo)
			if c < 0 || (c == 0 && !includeLower) {
				continue
			}
		}
		if hi != nil {
			c := value.Compare(k, *hi)
			if c > 0 || (c == 0 && !includeUpper) {
				continue
			}
		}
		if set, ok := o.entries[encodeKey(k)]; ok {
			out = append(out, set.ids()...)
		}
	}
	return out
}

// MinKey returns the smallest indexed key, if any.
func (o *OrderedIndex) MinKey() (value.Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.keys) == 0 {
		return value.Null(), false
	}
	return o.keys[0], true
}

// MaxKey returns the largest indexed key, if any.
func (o *OrderedIndex) MaxKey() (value.Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.keys) == 0 {
		return value.Null(), false
	}
	return o.keys[len(o.keys)-1], true
}

// Cardinality returns the number of distinct keys currently indexed.
func (o *OrderedIndex) Cardinality() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.keys)
}

func (o *OrderedIndex) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[string]*orderedIDSet)
	o.keys = nil
}

func (o *OrderedIndex) ToMap() map[string][]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string][]string, len(o.entries))
	for k, set := range o.entries {
		out[k] = set.ids()
	}
	return out
}

func (o *OrderedIndex) RestoreFromMap(m map[string][]string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[string]*orderedIDSet, len(m))
	o.keys = nil
	for encoded, ids := range m {
		v, err := decodeKey(encoded)
		if err != nil {
			continue
		}
		set := newOrderedIDSet()
		for _, id := range ids {
			set.add(id)
		}
		o.entries[encoded] = set
		o.insertSortedKey(v)
	}
}

var _ Index = (*OrderedIndex)(nil)
