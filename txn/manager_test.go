package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/storage/memory"
)

func TestManagerRejectsSecondConcurrentTransaction(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatal(err)
	}
	m := NewManager(store)
	if _, err := m.BeginTransaction(ctx, ReadCommitted); err != nil {
		t.Fatal(err)
	}
	if _, err := m.BeginTransaction(ctx, ReadCommitted); !errors.Is(err, dberr.ErrTxnAlreadyActive) {
		t.Fatalf("expected ErrTxnAlreadyActive, got %v", err)
	}
}

func TestManagerCommitClearsActiveSlot(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatal(err)
	}
	m := NewManager(store)
	tx, err := m.BeginTransaction(ctx, ReadCommitted)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Insert("p1", entity("ada")); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if _, active := m.Active(); active {
		t.Fatalf("expected no active transaction after commit")
	}
	if _, err := m.BeginTransaction(ctx, ReadCommitted); err != nil {
		t.Fatalf("expected a new transaction to be startable after commit: %v", err)
	}
}

func TestManagerCommitWithoutActiveFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatal(err)
	}
	m := NewManager(store)
	if err := m.Commit(ctx); !errors.Is(err, dberr.ErrTxnNotActive) {
		t.Fatalf("expected ErrTxnNotActive, got %v", err)
	}
}

func TestRunInTransactionRollsBackOnActionError(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatal(err)
	}
	m := NewManager(store)
	boom := errors.New("boom")
	err := m.RunInTransaction(ctx, ReadCommitted, func(ctx context.Context, tx *Transaction) error {
		if err := tx.Insert("p1", entity("ada")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the action's error to propagate, got %v", err)
	}
	exists, err := store.Exists(ctx, "p1")
	if err != nil || exists {
		t.Fatalf("expected rollback to leave storage untouched, exists=%v err=%v", exists, err)
	}
	if _, active := m.Active(); active {
		t.Fatalf("expected no active transaction after a rolled-back run")
	}
}

func TestRunInTransactionCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatal(err)
	}
	m := NewManager(store)
	err := m.RunInTransaction(ctx, ReadCommitted, func(ctx context.Context, tx *Transaction) error {
		return tx.Insert("p1", entity("ada"))
	})
	if err != nil {
		t.Fatal(err)
	}
	exists, err := store.Exists(ctx, "p1")
	if err != nil || !exists {
		t.Fatalf("expected p1 to exist after a successful run, exists=%v err=%v", exists, err)
	}
}

func TestScopeCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatal(err)
	}
	err := Scope(ctx, store, ReadCommitted, func(ctx context.Context, tx *Transaction) error {
		return tx.Insert("p1", entity("ada"))
	})
	if err != nil {
		t.Fatal(err)
	}
	exists, err := store.Exists(ctx, "p1")
	if err != nil || !exists {
		t.Fatalf("expected p1 to exist after Scope commit, exists=%v err=%v", exists, err)
	}
}

func TestScopeRollsBackOnActionError(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	if err := store.Open(ctx); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := Scope(ctx, store, ReadCommitted, func(ctx context.Context, tx *Transaction) error {
		if err := tx.Insert("p1", entity("ada")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the action's error, got %v", err)
	}
	exists, err := store.Exists(ctx, "p1")
	if err != nil || exists {
		t.Fatalf("expected storage untouched, exists=%v err=%v", exists, err)
	}
}

var _ storage.Port = (*memory.Store)(nil)
