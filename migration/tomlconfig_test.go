package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

func TestLoadTOMLStrategiesRenameAndDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "migrations.toml")
	doc := `
[[strategy]]
from = "0.0.0"
to = "0.1.0"
description = "rename name, add status default"

[strategy.rename_field]
name = "display_name"

[strategy.set_default]
status = "active"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	strategies, err := LoadTOMLStrategies(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(strategies) != 1 {
		t.Fatalf("expected 1 strategy, got %d", len(strategies))
	}

	out, err := strategies[0].Apply(context.Background(), map[string]storage.Entity{
		"p1": {"name": value.String("ada")},
	})
	if err != nil {
		t.Fatal(err)
	}
	attrs := out["p1"]
	if name, _ := attrs["display_name"].Str(); name != "ada" {
		t.Fatalf("expected renamed field preserved, got %v", attrs)
	}
	if status, _ := attrs["status"].Str(); status != "active" {
		t.Fatalf("expected default status set, got %v", attrs)
	}
}

func TestLoadTOMLStrategiesNoOpWhenNoTransformsGiven(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "migrations.toml")
	doc := `
[[strategy]]
from = "0.1.0"
to = "0.2.0"
description = "version bump only"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	strategies, err := LoadTOMLStrategies(path)
	if err != nil {
		t.Fatal(err)
	}
	if strategies[0].Kind() != KindNoOp {
		t.Fatalf("expected a no-op strategy, got %v", strategies[0].Kind())
	}
}
