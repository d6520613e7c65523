package index

import (
	"sync"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// HashIndex supports point lookup by value equality only.
type HashIndex struct {
	field string

	mu      sync.RWMutex
	buckets map[string]*orderedIDSet // keyed by a stable encoding of the Value
}

func NewHash(field string) *HashIndex {
	return &HashIndex{field: field, buckets: make(map[string]*orderedIDSet)}
}

func (h *HashIndex) Field() string     { return h.field }
func (h *HashIndex) Variant() Variant { return VariantHash }

func (h *HashIndex) Insert(id string, entity storage.Entity) {
	v, ok := fieldValue(h.field, entity)
	if !ok {
		return
	}
	key := encodeKey(v)
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.buckets[key]
	if !ok {
		set = newOrderedIDSet()
		h.buckets[key] = set
	}
	set.add(id)
}

func (h *HashIndex) Remove(id string, entity storage.Entity) {
	v, ok := fieldValue(h.field, entity)
	if !ok {
		return
	}
	key := encodeKey(v)
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.buckets[key]
	if !ok {
		return
	}
	set.remove(id)
	if set.empty() {
		delete(h.buckets, key)
	}
}

func (h *HashIndex) Search(key value.Value) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.buckets[encodeKey(key)]
	if !ok {
		return nil
	}
	return set.ids()
}

// ContainsKey reports whether any entity is indexed under key.
func (h *HashIndex) ContainsKey(key value.Value) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.buckets[encodeKey(key)]
	return ok
}

func (h *HashIndex) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buckets = make(map[string]*orderedIDSet)
}

func (h *HashIndex) ToMap() map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]string, len(h.buckets))
	for k, set := range h.buckets {
		out[k] = set.ids()
	}
	return out
}

func (h *HashIndex) RestoreFromMap(m map[string][]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buckets = make(map[string]*orderedIDSet, len(m))
	for k, ids := range m {
		set := newOrderedIDSet()
		for _, id := range ids {
			set.add(id)
		}
		h.buckets[k] = set
	}
}

var _ Index = (*HashIndex)(nil)
