package txn

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/storage"
)

// Manager coordinates transactions against a single Storage Port,
// permitting at most one active transaction at a time (spec.md §4.4).
type Manager struct {
	mu     sync.Mutex
	store  storage.Port
	active *Transaction
}

// NewManager returns a Manager bound to store.
func NewManager(store storage.Port) *Manager {
	return &Manager{store: store}
}

// BeginTransaction starts a new transaction, failing if one is
// already active against this Manager's Storage Port.
func (m *Manager) BeginTransaction(ctx context.Context, isolation Isolation) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, dberr.ErrTxnAlreadyActive
	}
	t, err := begin(ctx, m.store, isolation, uuid.NewString())
	if err != nil {
		return nil, err
	}
	m.active = t
	return t, nil
}

// Commit commits the Manager's active transaction and clears it,
// failing if none is active.
func (m *Manager) Commit(ctx context.Context) error {
	m.mu.Lock()
	t := m.active
	m.active = nil
	m.mu.Unlock()
	if t == nil {
		return dberr.ErrTxnNotActive
	}
	return t.Commit(ctx)
}

// Rollback rolls back the Manager's active transaction and clears it,
// failing if none is active.
func (m *Manager) Rollback(ctx context.Context) error {
	m.mu.Lock()
	t := m.active
	m.active = nil
	m.mu.Unlock()
	if t == nil {
		return dberr.ErrTxnNotActive
	}
	return t.Rollback(ctx)
}

// Active returns the currently active transaction, if any.
func (m *Manager) Active() (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// Action is the callback run inside RunInTransaction.
type Action func(ctx context.Context, t *Transaction) error

// RunInTransaction begins a transaction, invokes action, and commits
// on success or rolls back and re-raises on failure.
func (m *Manager) RunInTransaction(ctx context.Context, isolation Isolation, action Action) error {
	t, err := m.BeginTransaction(ctx, isolation)
	if err != nil {
		return err
	}
	if err := action(ctx, t); err != nil {
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
		if rbErr := t.Rollback(ctx); rbErr != nil {
			return rbErr
		}
		return err
	}
	return m.Commit(ctx)
}
