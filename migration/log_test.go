package migration

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLogTrimsToRingCapacity(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.Append(Entry{FromVersion: "0.0.0", ToVersion: "0.1.0", Outcome: OutcomeSuccess, At: time.Now()})
	}
	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(entries))
	}
}

func TestLogSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "migrations.log.yaml")

	l := NewLog(10)
	l.Append(Entry{FromVersion: "0.0.0", ToVersion: "0.1.0", Outcome: OutcomeSuccess, EntitiesAffected: 2})
	l.Append(Entry{FromVersion: "0.1.0", ToVersion: "0.2.0", Outcome: OutcomeFailed, Error: "boom"})

	if err := l.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadLog(path, 10)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	entries := loaded.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries round-tripped, got %d", len(entries))
	}
	if entries[1].Error != "boom" {
		t.Fatalf("expected error text preserved, got %q", entries[1].Error)
	}
}

func TestLogToEntityRoundTrip(t *testing.T) {
	l := NewLog(10)
	at := time.Now().Truncate(time.Second)
	l.Append(Entry{FromVersion: "0.0.0", ToVersion: "0.1.0", Outcome: OutcomeRolledBack, EntitiesAffected: 4, Duration: 3 * time.Second, Error: "boom", At: at})

	attrs := l.toEntity()
	if _, ok := attrs["entries"]; !ok {
		t.Fatalf("expected toEntity to produce an entries key, got %v", attrs)
	}

	reloaded := logFromEntity(attrs, 10)
	entries := reloaded.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry round-tripped through storage.Entity, got %d", len(entries))
	}
	got := entries[0]
	if got.Outcome != OutcomeRolledBack || got.EntitiesAffected != 4 || got.Duration != 3*time.Second || got.Error != "boom" {
		t.Fatalf("expected fields preserved through storage.Entity round-trip, got %+v", got)
	}
	if !got.At.Equal(at) {
		t.Fatalf("expected timestamp preserved, got %v want %v", got.At, at)
	}
}

func TestLoadLogMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.yaml")
	l, err := LoadLog(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Entries()) != 0 {
		t.Fatalf("expected an empty log for a missing file")
	}
}
