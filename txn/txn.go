// Package txn implements the Transaction Engine (spec.md §4.4):
// snapshot-based reads gated by isolation level, a buffered operation
// queue replayed on commit, and conflict detection for serializable
// transactions.
package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/internal/debug"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Isolation selects how reads are served and whether conflicts are
// detected at commit time.
type Isolation string

const (
	ReadUncommitted Isolation = "read-uncommitted"
	ReadCommitted   Isolation = "read-committed"
	RepeatableRead  Isolation = "repeatable-read"
	Serializable    Isolation = "serializable"
)

// DefaultIsolation is used when Begin is called without one.
const DefaultIsolation = ReadCommitted

// Status is a Transaction's lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusActive     Status = "active"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled-back"
	StatusFailed     Status = "failed"
)

// OpKind names a buffered write operation's shape.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpUpsert OpKind = "upsert"
	OpDelete OpKind = "delete"
)

// Operation is a single buffered write, replayed against the Storage
// Port in enqueue order on commit.
type Operation struct {
	Kind OpKind
	ID   string
	Data storage.Entity // nil for delete
}

// IsWrite always returns true. This mirrors an oddity in the system
// this engine was modeled on, whose equivalent predicate evaluated to
// true unconditionally regardless of operation kind; we keep that
// behavior rather than assert a reason for it.
func (o Operation) IsWrite() bool { return true }

// Transaction is a single unit of work against one Storage Port.
type Transaction struct {
	mu sync.Mutex

	id        string
	isolation Isolation
	store     storage.Port

	status    Status
	createdAt time.Time

	snapshot map[string]storage.Entity // captured at Begin
	queue    []Operation
	readSet  map[string]struct{} // serializable only
}

// begin captures a snapshot of store and returns a new active
// Transaction. store must already be open.
func begin(ctx context.Context, store storage.Port, isolation Isolation, id string) (*Transaction, error) {
	if !store.IsOpen() {
		return nil, dberr.ErrNotOpen
	}
	if isolation == "" {
		isolation = DefaultIsolation
	}
	snapshot, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("txn: capturing snapshot: %w", err)
	}
	t := &Transaction{
		id:        id,
		isolation: isolation,
		store:     store,
		status:    StatusActive,
		createdAt: time.Now(),
		snapshot:  snapshot,
	}
	if isolation == Serializable {
		t.readSet = make(map[string]struct{})
	}
	debug.Logf("txn[%s]: begin isolation=%s", id, isolation)
	return t, nil
}

func (t *Transaction) ID() string            { return t.id }
func (t *Transaction) Isolation() Isolation  { return t.isolation }
func (t *Transaction) Status() Status        { return t.status }
func (t *Transaction) CreatedAt() time.Time  { return t.createdAt }

func (t *Transaction) requireActive() error {
	if t.status != StatusActive {
		return dberr.ErrTxnNotActive
	}
	return nil
}

// overlay applies the queued operations (in order) on top of a copy of
// the snapshot, used by repeatable-read and serializable reads.
func (t *Transaction) overlay() map[string]storage.Entity {
	view := make(map[string]storage.Entity, len(t.snapshot))
	for id, attrs := range t.snapshot {
		view[id] = attrs
	}
	for _, op := range t.queue {
		switch op.Kind {
		case OpDelete:
			delete(view, op.ID)
		default:
			view[op.ID] = op.Data
		}
	}
	return view
}

func (t *Transaction) trackRead(id string) {
	if t.isolation == Serializable {
		t.readSet[id] = struct{}{}
	}
}

// Get reads id per the isolation level's read semantics (spec.md §4.4
// table).
func (t *Transaction) Get(ctx context.Context, id string) (storage.Entity, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireActive(); err != nil {
		return nil, false, err
	}

	switch t.isolation {
	case ReadUncommitted, ReadCommitted:
		return t.store.Get(ctx, id)
	default: // repeatable-read, serializable
		t.trackRead(id)
		attrs, ok := t.overlay()[id]
		return attrs, ok, nil
	}
}

// GetAll reads every entity per the isolation level's read semantics.
func (t *Transaction) GetAll(ctx context.Context) (map[string]storage.Entity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireActive(); err != nil {
		return nil, err
	}

	switch t.isolation {
	case ReadUncommitted, ReadCommitted:
		return t.store.GetAll(ctx)
	default:
		view := t.overlay()
		if t.isolation == Serializable {
			for id := range view {
				t.readSet[id] = struct{}{}
			}
		}
		return view, nil
	}
}

// Exists reports whether id is visible per the isolation level.
func (t *Transaction) Exists(ctx context.Context, id string) (bool, error) {
	_, ok, err := t.Get(ctx, id)
	return ok, err
}

// Insert enqueues an insert operation. Enqueuing never touches
// storage.
func (t *Transaction) Insert(id string, data storage.Entity) error {
	return t.enqueue(OpInsert, id, data)
}

// Update enqueues an update operation.
func (t *Transaction) Update(id string, data storage.Entity) error {
	return t.enqueue(OpUpdate, id, data)
}

// Upsert enqueues an upsert operation.
func (t *Transaction) Upsert(id string, data storage.Entity) error {
	return t.enqueue(OpUpsert, id, data)
}

// Delete enqueues a delete operation.
func (t *Transaction) Delete(id string) error {
	return t.enqueue(OpDelete, id, nil)
}

func (t *Transaction) enqueue(kind OpKind, id string, data storage.Entity) error {
	if id == "" {
		return fmt.Errorf("txn: operation id must be non-empty")
	}
	if kind != OpDelete && data == nil {
		return fmt.Errorf("txn: %s requires non-null data", kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireActive(); err != nil {
		return err
	}
	t.queue = append(t.queue, Operation{Kind: kind, ID: id, Data: data})
	return nil
}

// Commit performs serializable conflict detection (if applicable),
// replays the queue against the Storage Port, and transitions to
// committed. On a replay failure it attempts to restore the snapshot;
// see spec.md §4.4 for the exact failure semantics.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireActive(); err != nil {
		return err
	}

	if t.isolation == Serializable {
		if conflictErr := t.detectConflicts(ctx); conflictErr != nil {
			t.status = StatusRolledBack
			t.queue = nil
			return conflictErr
		}
	}

	for _, op := range t.queue {
		if err := t.replay(ctx, op); err != nil {
			restoreErr := t.restoreSnapshot(ctx)
			if restoreErr != nil {
				t.status = StatusFailed
				return fmt.Errorf("txn: commit failed (%v) and snapshot restore failed (%v): database may be inconsistent", err, restoreErr)
			}
			t.status = StatusRolledBack
			return fmt.Errorf("txn: commit step failed, snapshot restored: %w", err)
		}
	}

	t.status = StatusCommitted
	debug.Logf("txn[%s]: committed %d operations", t.id, len(t.queue))
	return nil
}

// detectConflicts compares the snapshot value of every read-set id
// against the current Storage Port value, reporting any id whose
// value changed or whose existence changed since the snapshot was
// taken.
func (t *Transaction) detectConflicts(ctx context.Context) error {
	var conflicting []string
	for id := range t.readSet {
		before, hadBefore := t.snapshot[id]
		after, hasAfter, err := t.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("txn: reading %q for conflict check: %w", id, err)
		}
		if hadBefore != hasAfter {
			conflicting = append(conflicting, id)
			continue
		}
		if !hadBefore {
			continue
		}
		if !entitiesEqual(before, after) {
			conflicting = append(conflicting, id)
		}
	}
	if len(conflicting) > 0 {
		return dberr.Conflict(conflicting)
	}
	return nil
}

// entitiesEqual compares two attribute maps, using a structural hash
// as a fast pre-check (differing hashes mean the maps differ) before
// the full deep-equality walk.
func entitiesEqual(a, b storage.Entity) bool {
	if len(a) != len(b) {
		return false
	}
	ha, errA := hashstructure.Hash(a, hashstructure.FormatV2, nil)
	hb, errB := hashstructure.Hash(b, hashstructure.FormatV2, nil)
	if errA == nil && errB == nil && ha != hb {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !value.Equal(av, bv) {
			return false
		}
	}
	return true
}

func (t *Transaction) replay(ctx context.Context, op Operation) error {
	switch op.Kind {
	case OpInsert:
		return t.store.Insert(ctx, op.ID, op.Data)
	case OpUpdate:
		return t.store.Update(ctx, op.ID, op.Data)
	case OpUpsert:
		return t.store.Upsert(ctx, op.ID, op.Data)
	case OpDelete:
		_, err := t.store.Delete(ctx, op.ID)
		return err
	default:
		return fmt.Errorf("txn: unknown operation kind %q", op.Kind)
	}
}

func (t *Transaction) restoreSnapshot(ctx context.Context) error {
	if err := t.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("txn: clearing storage during restore: %w", err)
	}
	if err := t.store.InsertMany(ctx, t.snapshot); err != nil {
		return fmt.Errorf("txn: reinserting snapshot during restore: %w", err)
	}
	return nil
}

// Rollback clears the queue without touching storage (no operation in
// the queue was ever applied).
func (t *Transaction) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireActive(); err != nil {
		return err
	}
	t.queue = nil
	t.status = StatusRolledBack
	debug.Logf("txn[%s]: rolled back", t.id)
	return nil
}

// Dispose rolls back if still active, then releases resources.
// Idempotent.
func (t *Transaction) Dispose(ctx context.Context) error {
	t.mu.Lock()
	active := t.status == StatusActive
	t.mu.Unlock()
	if active {
		if err := t.Rollback(ctx); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.snapshot = nil
	t.queue = nil
	t.readSet = nil
	t.mu.Unlock()
	return nil
}
