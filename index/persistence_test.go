package index

import (
	"path/filepath"
	"testing"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

func TestSaveAllLoadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexes.yaml")

	m := NewManager()
	if err := m.CreateIndex("name", VariantHash); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateIndex("age", VariantOrdered); err != nil {
		t.Fatal(err)
	}
	m.InsertAll("1", storage.Entity{"name": value.String("ada"), "age": value.Int(36)})
	m.InsertAll("2", storage.Entity{"name": value.String("bob"), "age": value.Int(41)})

	if err := m.SaveAll(path); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	loaded := NewManager()
	count, err := loaded.LoadAll(path)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 indexes loaded, got %d", count)
	}

	ids, err := loaded.Search("name", value.String("ada"))
	if err != nil || len(ids) != 1 || ids[0] != "1" {
		t.Fatalf("expected [1] for name=ada after reload, got %v err=%v", ids, err)
	}

	lo := value.Int(0)
	hi := value.Int(100)
	ranged, err := loaded.RangeSearch("age", &lo, &hi, true, true)
	if err != nil || len(ranged) != 2 {
		t.Fatalf("expected 2 entries in age range after reload, got %v err=%v", ranged, err)
	}
}

func TestLoadAllMissingFileReturnsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.yaml")

	m := NewManager()
	count, err := m.LoadAll(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 indexes loaded from missing file, got %d", count)
	}
}
