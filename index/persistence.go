package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/entidb/entidb/internal/debug"
)

// persistedIndex is the on-disk shape of a single index, spec.md §6:
// a field name, its variant, and the entries map keyed by the
// self-describing encoding from keys.go (each key carries its own
// type tag, so the stored kind round-trips through decodeKey without
// a separate field).
type persistedIndex struct {
	Field   string              `yaml:"field"`
	Variant Variant             `yaml:"variant"`
	Entries map[string][]string `yaml:"entries"`
}

type persistedFile struct {
	Indexes []persistedIndex `yaml:"indexes"`
}

// SaveAll writes every registered index to a single YAML file at path,
// guarded by an advisory file lock so concurrent processes sharing a
// data directory don't interleave writes.
func (m *Manager) SaveAll(path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("index: acquiring lock for %s: %w", path, err)
	}
	defer lock.Unlock()

	m.mu.RLock()
	doc := persistedFile{Indexes: make([]persistedIndex, 0, len(m.indexes))}
	for field, idx := range m.indexes {
		doc.Indexes = append(doc.Indexes, persistedIndex{
			Field:   field,
			Variant: idx.Variant(),
			Entries: idx.ToMap(),
		})
	}
	m.mu.RUnlock()

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("index: marshaling %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("index: writing %s: %w", path, err)
	}
	debug.Logf("index: saved %d indexes to %s", len(doc.Indexes), path)
	return nil
}

// LoadAll reads path and registers every persisted index, returning
// the count of indexes loaded. Full-text indexes come back with term
// membership but no positional data; callers should follow up with
// RebuildAll once the entity set is available. LoadAll does not do
// this itself.
func (m *Manager) LoadAll(path string) (int, error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return 0, fmt.Errorf("index: acquiring lock for %s: %w", path, err)
	}
	defer lock.Unlock()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("index: reading %s: %w", path, err)
	}

	var doc persistedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("index: unmarshaling %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pi := range doc.Indexes {
		var idx Index
		switch pi.Variant {
		case VariantOrdered:
			idx = NewOrdered(pi.Field)
		case VariantHash:
			idx = NewHash(pi.Field)
		case VariantFullText:
			idx = NewFullText(pi.Field)
		default:
			return 0, fmt.Errorf("index: %s: unknown variant %q for field %q", path, pi.Variant, pi.Field)
		}
		idx.RestoreFromMap(pi.Entries)
		m.indexes[pi.Field] = idx
	}
	debug.Logf("index: loaded %d indexes from %s", len(doc.Indexes), path)
	return len(doc.Indexes), nil
}
