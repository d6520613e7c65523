package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/storage/memory"
	"github.com/entidb/entidb/value"
)

func newOpenStore(t *testing.T) (storage.Port, context.Context) {
	t.Helper()
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return store, ctx
}

func TestInitSeedsVersionWhenAbsent(t *testing.T) {
	store, ctx := newOpenStore(t)
	e := NewEngine(store, nil, DefaultConfig(), nil)
	v, err := e.CurrentVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != "0.0.0" {
		t.Fatalf("expected seeded version 0.0.0, got %q", v)
	}
	exists, err := store.Exists(ctx, storage.SchemaVersionID)
	if err != nil || !exists {
		t.Fatalf("expected __schema_version__ persisted, exists=%v err=%v", exists, err)
	}
}

func TestMigrateAppliesSingleStepAndAdvancesVersion(t *testing.T) {
	store, ctx := newOpenStore(t)
	if err := store.Insert(ctx, "p1", storage.Entity{"name": value.String("ada")}); err != nil {
		t.Fatal(err)
	}
	rename := NewSingleEntityStrategy("0.0.0", "0.1.0", "rename name to display_name",
		func(_ context.Context, _ string, attrs storage.Entity) (storage.Entity, error) {
			out := storage.Entity{"display_name": attrs["name"]}
			return out, nil
		}, nil)

	e := NewEngine(store, []Strategy{rename}, Config{TargetVersion: "0.1.0", MaxLogEntries: 10}, nil)
	result, err := e.Migrate(ctx, "0.1.0")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if result.StepsApplied != 1 || result.EntitiesAffected != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	got, ok, err := store.Get(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("expected p1 to survive migration, ok=%v err=%v", ok, err)
	}
	if _, has := got["display_name"]; !has {
		t.Fatalf("expected renamed field, got %v", got)
	}

	v, err := e.CurrentVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != "0.1.0" {
		t.Fatalf("expected version advanced to 0.1.0, got %q", v)
	}

	entries := e.Log().Entries()
	if len(entries) != 1 || entries[0].Outcome != OutcomeSuccess {
		t.Fatalf("expected one successful log entry, got %+v", entries)
	}
}

func TestMigrateMultiStepPath(t *testing.T) {
	store, ctx := newOpenStore(t)
	step1 := NewNoOpStrategy("0.0.0", "0.1.0", "bump")
	step2 := NewNoOpStrategy("0.1.0", "0.2.0", "bump again")
	e := NewEngine(store, []Strategy{step2, step1}, Config{TargetVersion: "0.2.0"}, nil)
	result, err := e.Migrate(ctx, "0.2.0")
	if err != nil {
		t.Fatal(err)
	}
	if result.StepsApplied != 2 {
		t.Fatalf("expected a 2-step path, got %d", result.StepsApplied)
	}
}

func TestMigrateUnreachableTargetFailsBeforeMutation(t *testing.T) {
	store, ctx := newOpenStore(t)
	if err := store.Insert(ctx, "p1", storage.Entity{"name": value.String("ada")}); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(store, nil, DefaultConfig(), nil)
	_, err := e.Migrate(ctx, "9.9.9")
	if !errors.Is(err, dberr.ErrNoMigrationPath) {
		t.Fatalf("expected ErrNoMigrationPath, got %v", err)
	}
	got, ok, err := store.Get(ctx, "p1")
	if err != nil || !ok {
		t.Fatal("expected entity untouched after a failed path search")
	}
	if name, _ := got["name"].Str(); name != "ada" {
		t.Fatalf("expected no mutation, got %q", name)
	}
}

func TestMigrateRestoresSnapshotOnStepFailure(t *testing.T) {
	store, ctx := newOpenStore(t)
	if err := store.Insert(ctx, "p1", storage.Entity{"name": value.String("ada")}); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	broken := NewGeneralStrategy("0.0.0", "0.1.0", "always fails",
		func(context.Context, map[string]storage.Entity) (map[string]storage.Entity, error) {
			return nil, boom
		}, nil)

	e := NewEngine(store, []Strategy{broken}, Config{TargetVersion: "0.1.0", CreateBackupBeforeMigration: true, MaxLogEntries: 10}, nil)
	_, err := e.Migrate(ctx, "0.1.0")
	if err == nil {
		t.Fatalf("expected migration to fail")
	}
	if !errors.Is(err, dberr.ErrMigrationStepFailed) {
		t.Fatalf("expected step-failed error, got %v", err)
	}

	got, ok, storeErr := store.Get(ctx, "p1")
	if storeErr != nil || !ok {
		t.Fatal("expected p1 restored from backup after a failed step")
	}
	if name, _ := got["name"].Str(); name != "ada" {
		t.Fatalf("expected restored value, got %q", name)
	}

	entries := e.Log().Entries()
	if len(entries) != 1 || entries[0].Outcome != OutcomeRolledBack {
		t.Fatalf("expected one rolled-back log entry, got %+v", entries)
	}
}

func TestMigrateTrivialWhenAlreadyAtTarget(t *testing.T) {
	store, ctx := newOpenStore(t)
	e := NewEngine(store, nil, DefaultConfig(), nil)
	if _, err := e.CurrentVersion(ctx); err != nil {
		t.Fatal(err)
	}
	result, err := e.Migrate(ctx, "0.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if result.StepsApplied != 0 {
		t.Fatalf("expected a trivial no-step migration, got %+v", result)
	}

	entries := e.Log().Entries()
	if len(entries) != 1 || entries[0].Outcome != OutcomeSkipped {
		t.Fatalf("expected one skipped log entry, got %+v", entries)
	}

	attrs, ok, err := store.Get(ctx, storage.MigrationHistoryID)
	if err != nil || !ok {
		t.Fatalf("expected __migration_history__ to be persisted, ok=%v err=%v", ok, err)
	}
	reloaded := NewEngine(store, nil, DefaultConfig(), nil)
	reloaded.ensureHistoryLoaded(ctx)
	if got := reloaded.Log().Entries(); len(got) != 1 || got[0].Outcome != OutcomeSkipped {
		t.Fatalf("expected reloaded engine to see persisted history, got %+v (raw %v)", got, attrs)
	}
}
