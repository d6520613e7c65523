package collection

import (
	"context"
	"testing"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/index"
	"github.com/entidb/entidb/query"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/storage/memory"
	"github.com/entidb/entidb/value"
)

type person struct {
	ID   string
	Name string
	Age  int64
}

func personFromMap(id string, attrs storage.Entity) (person, error) {
	name, _ := attrs["name"].Str()
	age, _ := attrs["age"].Int()
	return person{ID: id, Name: name, Age: age}, nil
}

func personToMap(p person) (storage.Entity, error) {
	return storage.Entity{"name": value.String(p.Name), "age": value.Int(p.Age)}, nil
}

func personID(p person) string { return p.ID }

func personWithID(p person, id string) person { p.ID = id; return p }

func newTestCollection(t *testing.T) (*Collection[person], context.Context) {
	t.Helper()
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	c := New[person]("people", store, personFromMap, personToMap, personID, personWithID, DefaultConfig())
	return c, ctx
}

func TestInsertGeneratesIDWhenAbsent(t *testing.T) {
	c, ctx := newTestCollection(t)
	id, err := c.Insert(ctx, person{Name: "ada", Age: 36})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a generated id")
	}
	got, ok, err := c.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("expected to find inserted entity, ok=%v err=%v", ok, err)
	}
	if got.Name != "ada" {
		t.Fatalf("expected name ada, got %q", got.Name)
	}
}

func TestInsertDuplicateIDFails(t *testing.T) {
	c, ctx := newTestCollection(t)
	if _, err := c.Insert(ctx, person{ID: "p1", Name: "ada"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Insert(ctx, person{ID: "p1", Name: "bob"}); err == nil {
		t.Fatalf("expected error inserting duplicate id")
	}
}

func TestUpdateMaintainsIndexes(t *testing.T) {
	c, ctx := newTestCollection(t)
	if err := c.CreateIndex(ctx, "name", index.VariantHash); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Insert(ctx, person{ID: "p1", Name: "ada"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Update(ctx, person{ID: "p1", Name: "grace"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	matches, err := c.Find(ctx, query.Equals{FieldName: "name", Value: value.String("ada")})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches for stale name 'ada', got %v", matches)
	}

	matches, err = c.Find(ctx, query.Equals{FieldName: "name", Value: value.String("grace")})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match for updated name 'grace', got %v", matches)
	}
}

func TestUpdateMissingFails(t *testing.T) {
	c, ctx := newTestCollection(t)
	err := c.Update(ctx, person{ID: "missing", Name: "x"})
	if err == nil {
		t.Fatalf("expected error updating missing entity")
	}
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	c, ctx := newTestCollection(t)
	id, err := c.Upsert(ctx, person{ID: "p1", Name: "ada"})
	if err != nil || id != "p1" {
		t.Fatalf("expected upsert to insert p1, got id=%q err=%v", id, err)
	}
	if _, err := c.Upsert(ctx, person{ID: "p1", Name: "ada-updated"}); err != nil {
		t.Fatalf("expected upsert to update p1: %v", err)
	}
	got, ok, err := c.Get(ctx, "p1")
	if err != nil || !ok || got.Name != "ada-updated" {
		t.Fatalf("expected updated name, got %v ok=%v err=%v", got, ok, err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	c, ctx := newTestCollection(t)
	if _, err := c.Insert(ctx, person{ID: "p1", Name: "ada"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, "p1"); err != nil {
		t.Fatalf("expected delete of already-deleted id to be a no-op, got %v", err)
	}
}

func TestDeleteOrThrowFailsOnMissing(t *testing.T) {
	c, ctx := newTestCollection(t)
	err := c.DeleteOrThrow(ctx, "missing")
	if err == nil {
		t.Fatalf("expected error deleting missing entity")
	}
}

func TestFindRangeQueryUsesOrderedIndex(t *testing.T) {
	c, ctx := newTestCollection(t)
	if err := c.CreateIndex(ctx, "age", index.VariantOrdered); err != nil {
		t.Fatal(err)
	}
	for i, age := range []int64{20, 30, 40} {
		if _, err := c.Insert(ctx, person{ID: string(rune('a' + i)), Name: "x", Age: age}); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := c.Find(ctx, query.NewBetween("age", value.Int(25), value.Int(40)))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches in [25,40], got %v", matches)
	}
}

func TestFindWithoutIndexFallsBackToScan(t *testing.T) {
	c, ctx := newTestCollection(t)
	if _, err := c.Insert(ctx, person{ID: "p1", Name: "ada", Age: 36}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Insert(ctx, person{ID: "p2", Name: "bob", Age: 40}); err != nil {
		t.Fatal(err)
	}
	matches, err := c.Find(ctx, query.GreaterThan("age", value.Int(38)))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "p2" {
		t.Fatalf("expected only p2 to match, got %v", matches)
	}
}

func TestDeleteAllPreservesReservedIDs(t *testing.T) {
	c, ctx := newTestCollection(t)
	if _, err := c.Insert(ctx, person{ID: "p1", Name: "ada"}); err != nil {
		t.Fatal(err)
	}
	if err := c.store.Insert(ctx, storage.SchemaVersionID, storage.Entity{"version": value.String("1.0.0")}); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	all, err := c.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected GetAll to be empty, got %v", all)
	}
	exists, err := c.store.Exists(ctx, storage.SchemaVersionID)
	if err != nil || !exists {
		t.Fatalf("expected reserved id to survive DeleteAll, exists=%v err=%v", exists, err)
	}
}

func TestInsertManyPartialFailureKeepsPriorInserts(t *testing.T) {
	c, ctx := newTestCollection(t)
	if _, err := c.Insert(ctx, person{ID: "dup", Name: "existing"}); err != nil {
		t.Fatal(err)
	}
	ids, err := c.InsertMany(ctx, []person{
		{ID: "fresh-1", Name: "a"},
		{ID: "dup", Name: "conflict"},
		{ID: "fresh-2", Name: "b"},
	})
	if err == nil {
		t.Fatalf("expected a combined error from the duplicate id")
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 successful inserts despite one failure, got %v", ids)
	}
}

func TestDisposePreventsFurtherOperations(t *testing.T) {
	c, ctx := newTestCollection(t)
	if err := c.Dispose(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := c.Insert(ctx, person{Name: "ada"})
	if err != dberr.ErrCollectionDisposed {
		t.Fatalf("expected ErrCollectionDisposed, got %v", err)
	}
}
