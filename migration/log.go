package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/entidb/entidb/internal/debug"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Outcome is a Migration Log Entry's terminal state (spec.md §3's
// "outcome ∈ {success, failed, skipped, rolled-back}").
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeRolledBack Outcome = "rolled-back"
)

// Entry is a single migration audit record, append-only like the
// teacher's interactions.jsonl but trimmed to a ring since migrations
// (unlike interactive agent events) don't need unbounded history.
type Entry struct {
	At               time.Time     `yaml:"at"`
	FromVersion      string        `yaml:"from_version"`
	ToVersion        string        `yaml:"to_version"`
	Outcome          Outcome       `yaml:"outcome"`
	EntitiesAffected int           `yaml:"entities_affected,omitempty"`
	Duration         time.Duration `yaml:"duration,omitempty"`
	Error            string        `yaml:"error,omitempty"`
}

// Log is a ring buffer of Entry, capped at maxEntries (oldest entries
// drop off the front once full).
type Log struct {
	mu         sync.Mutex
	maxEntries int
	entries    []Entry
}

// NewLog returns an empty Log capped at maxEntries (100 if <= 0).
func NewLog(maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &Log{maxEntries: maxEntries}
}

// Append records e, trimming the oldest entry if the ring is full.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.maxEntries; over > 0 {
		l.entries = l.entries[over:]
	}
}

// Entries returns a copy of the current ring, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

type persistedLog struct {
	MaxEntries int     `yaml:"max_entries"`
	Entries    []Entry `yaml:"entries"`
}

// toEntity encodes the ring as the reserved __migration_history__
// shape spec.md §6 documents: {entries: [MigrationLog]}.
func (l *Log) toEntity() storage.Entity {
	l.mu.Lock()
	entries := append([]Entry(nil), l.entries...)
	l.mu.Unlock()

	seq := make([]value.Value, len(entries))
	for i, e := range entries {
		seq[i] = value.Map(map[string]value.Value{
			"at":                value.Time(e.At),
			"from_version":      value.String(e.FromVersion),
			"to_version":        value.String(e.ToVersion),
			"outcome":           value.String(string(e.Outcome)),
			"entities_affected": value.Int(int64(e.EntitiesAffected)),
			"duration_ns":       value.Int(int64(e.Duration)),
			"error":             value.String(e.Error),
		})
	}
	return storage.Entity{"entries": value.Seq(seq)}
}

// entryFromValue decodes one element of the __migration_history__
// entries sequence back into an Entry.
func entryFromValue(v value.Value) (Entry, bool) {
	m, ok := v.Map()
	if !ok {
		return Entry{}, false
	}
	var e Entry
	if t, ok := m["at"].Time(); ok {
		e.At = t
	}
	if s, ok := m["from_version"].Str(); ok {
		e.FromVersion = s
	}
	if s, ok := m["to_version"].Str(); ok {
		e.ToVersion = s
	}
	if s, ok := m["outcome"].Str(); ok {
		e.Outcome = Outcome(s)
	}
	if i, ok := m["entities_affected"].Int(); ok {
		e.EntitiesAffected = int(i)
	}
	if i, ok := m["duration_ns"].Int(); ok {
		e.Duration = time.Duration(i)
	}
	if s, ok := m["error"].Str(); ok {
		e.Error = s
	}
	return e, true
}

// logFromEntity decodes a __migration_history__ entity back into a
// Log ring capped at maxEntries.
func logFromEntity(attrs storage.Entity, maxEntries int) *Log {
	l := NewLog(maxEntries)
	seq, ok := attrs["entries"].Seq()
	if !ok {
		return l
	}
	for _, v := range seq {
		if e, ok := entryFromValue(v); ok {
			l.Append(e)
		}
	}
	return l
}

// Save writes the ring to path under an advisory file lock, the same
// pattern index.Manager.SaveAll uses for its on-disk index files.
func (l *Log) Save(path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("migration: acquiring lock for %s: %w", path, err)
	}
	defer lock.Unlock()

	l.mu.Lock()
	doc := persistedLog{MaxEntries: l.maxEntries, Entries: append([]Entry(nil), l.entries...)}
	l.mu.Unlock()

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("migration: marshaling log %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("migration: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("migration: writing %s: %w", path, err)
	}
	debug.Logf("migration: saved %d log entries to %s", len(doc.Entries), path)
	return nil
}

// LoadLog reads a Log previously written by Save. A missing file
// yields an empty Log with maxEntries, not an error.
func LoadLog(path string, maxEntries int) (*Log, error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("migration: acquiring lock for %s: %w", path, err)
	}
	defer lock.Unlock()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewLog(maxEntries), nil
	}
	if err != nil {
		return nil, fmt.Errorf("migration: reading %s: %w", path, err)
	}

	var doc persistedLog
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("migration: unmarshaling %s: %w", path, err)
	}
	if maxEntries <= 0 {
		maxEntries = doc.MaxEntries
	}
	l := NewLog(maxEntries)
	for _, e := range doc.Entries {
		l.Append(e)
	}
	debug.Logf("migration: loaded %d log entries from %s", len(doc.Entries), path)
	return l, nil
}
