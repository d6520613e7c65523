package txn

import (
	"context"

	"github.com/google/uuid"

	"github.com/entidb/entidb/storage"
)

// Scope runs action inside a single transaction against store,
// without requiring a Manager. It is the single-shot equivalent of
// Manager.RunInTransaction for callers that don't need to coordinate
// multiple transactions against the same Storage Port.
func Scope(ctx context.Context, store storage.Port, isolation Isolation, action Action) error {
	t, err := begin(ctx, store, isolation, uuid.NewString())
	if err != nil {
		return err
	}
	if err := action(ctx, t); err != nil {
		if rbErr := t.Rollback(ctx); rbErr != nil {
			return rbErr
		}
		return err
	}
	return t.Commit(ctx)
}
