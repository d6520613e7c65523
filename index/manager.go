package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Manager owns the set of live indexes for a collection and dispatches
// maintenance/search calls to the right variant (spec.md §4.2 "Index
// Manager"). It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]Index // field -> index
}

func NewManager() *Manager {
	return &Manager{indexes: make(map[string]Index)}
}

// CreateIndex registers a new index for field with the given variant,
// failing if one already exists for that field.
func (m *Manager) CreateIndex(field string, variant Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[field]; ok {
		return dberr.ErrIndexExists
	}
	switch variant {
	case VariantOrdered:
		m.indexes[field] = NewOrdered(field)
	case VariantHash:
		m.indexes[field] = NewHash(field)
	case VariantFullText:
		m.indexes[field] = NewFullText(field)
	default:
		return fmt.Errorf("index: unknown variant %q", variant)
	}
	return nil
}

// RemoveIndex drops the index registered for field.
func (m *Manager) RemoveIndex(field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[field]; !ok {
		return dberr.ErrIndexNotFound
	}
	delete(m.indexes, field)
	return nil
}

// HasIndex reports whether field currently has a registered index.
func (m *Manager) HasIndex(field string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[field]
	return ok
}

// Get returns the index registered for field, if any.
func (m *Manager) Get(field string) (Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[field]
	return idx, ok
}

// Fields returns the sorted list of fields currently indexed.
func (m *Manager) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.indexes))
	for f := range m.indexes {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// InsertAll feeds entity into every registered index.
func (m *Manager) InsertAll(id string, entity storage.Entity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, idx := range m.indexes {
		idx.Insert(id, entity)
	}
}

// RemoveAll removes entity from every registered index.
func (m *Manager) RemoveAll(id string, entity storage.Entity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, idx := range m.indexes {
		idx.Remove(id, entity)
	}
}

// Search looks up key on the named field's index.
func (m *Manager) Search(field string, key value.Value) ([]string, error) {
	idx, ok := m.Get(field)
	if !ok {
		return nil, dberr.ErrIndexNotFound
	}
	return idx.Search(key), nil
}

// RangeSearch looks up a range on the named field's ordered index.
func (m *Manager) RangeSearch(field string, lo, hi *value.Value, includeLower, includeUpper bool) ([]string, error) {
	idx, ok := m.Get(field)
	if !ok {
		return nil, dberr.ErrIndexNotFound
	}
	ordered, ok := idx.(*OrderedIndex)
	if !ok {
		return nil, fmt.Errorf("index: field %q is not an ordered index", field)
	}
	return ordered.RangeSearch(lo, hi, includeLower, includeUpper), nil
}

// RebuildAll clears and repopulates every registered index by
// scanning the full entity set — for use after RestoreFromMap on
// full-text indexes (whose persisted form lacks positional data), and
// called by the collection runtime's RebuildAllIndexes and DeleteAll
// (the latter with no entities, leaving every index empty).
func (m *Manager) RebuildAll(entities map[string]storage.Entity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, idx := range m.indexes {
		idx.Clear()
		for id, entity := range entities {
			idx.Insert(id, entity)
		}
	}
}
