// Package collection implements the Collection Runtime (spec.md
// §4.3): typed CRUD over a storage.Port with synchronized index
// maintenance, query planning, and per-entity locking.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/index"
	"github.com/entidb/entidb/internal/debug"
	"github.com/entidb/entidb/query"
	"github.com/entidb/entidb/storage"
)

// Config tunes a Collection's optional behaviors (spec.md §4.3's
// "optional configuration {enable-versioning, enable-debug-logging,
// max-cached-locks}").
type Config struct {
	EnableVersioning   bool
	EnableDebugLogging bool
	MaxCachedLocks     int
	// BulkConcurrency bounds how many goroutines InsertMany/DeleteMany
	// run at once (collection's errgroup fan-out).
	BulkConcurrency int
}

// DefaultConfig returns the configuration a Collection uses when none
// is supplied.
func DefaultConfig() Config {
	return Config{MaxCachedLocks: 1024, BulkConcurrency: 8}
}

// FromMapFunc rehydrates a stored attribute map back into T.
type FromMapFunc[T any] func(id string, attrs storage.Entity) (T, error)

// ToMapFunc flattens T into its storable attribute map (excluding id).
type ToMapFunc[T any] func(item T) (storage.Entity, error)

// IDFunc extracts the identifier T currently carries, or "" if unset.
type IDFunc[T any] func(item T) string

// WithIDFunc returns a copy of item with its identifier set to id,
// used when Insert must generate a fresh id.
type WithIDFunc[T any] func(item T, id string) T

// Collection is a named, typed container of entities backed by one
// Storage Port instance, carrying zero or more indexes keyed by field
// name (spec.md §4.1 "Collection").
type Collection[T any] struct {
	name  string
	store storage.Port

	fromMap FromMapFunc[T]
	toMap   ToMapFunc[T]
	idOf    IDFunc[T]
	withID  WithIDFunc[T]

	indexes *index.Manager
	locks   *lockCache
	cfg     Config

	disposed atomic.Bool
}

// New constructs a Collection. store must already be open.
func New[T any](name string, store storage.Port, fromMap FromMapFunc[T], toMap ToMapFunc[T], idOf IDFunc[T], withID WithIDFunc[T], cfg Config) *Collection[T] {
	if cfg.MaxCachedLocks <= 0 {
		cfg.MaxCachedLocks = DefaultConfig().MaxCachedLocks
	}
	return &Collection[T]{
		name:    name,
		store:   store,
		fromMap: fromMap,
		toMap:   toMap,
		idOf:    idOf,
		withID:  withID,
		indexes: index.NewManager(),
		locks:   newLockCache(cfg.MaxCachedLocks),
		cfg:     cfg,
	}
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) logf(format string, args ...interface{}) {
	if c.cfg.EnableDebugLogging {
		debug.Logf("collection[%s]: "+format, append([]interface{}{c.name}, args...)...)
	}
}

func (c *Collection[T]) checkOpen() error {
	if c.disposed.Load() {
		return dberr.ErrCollectionDisposed
	}
	return nil
}

// ---- single-entity CRUD ----

// Insert stores item, generating a fresh id when item has none, and
// returns the assigned id.
func (c *Collection[T]) Insert(ctx context.Context, item T) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	id := c.idOf(item)
	if id == "" {
		id = uuid.NewString()
		item = c.withID(item, id)
	}

	entry := c.locks.Acquire(id)
	defer c.locks.Release(entry)

	attrs, err := c.toMap(item)
	if err != nil {
		return "", fmt.Errorf("collection: encoding %q: %w", id, err)
	}
	if err := c.store.Insert(ctx, id, attrs); err != nil {
		return "", fmt.Errorf("collection: inserting %q: %w", id, err)
	}
	c.indexes.InsertAll(id, attrs)
	c.logf("inserted %q", id)
	return id, nil
}

// InsertMany is a best-effort bulk insert; a failure on one id does
// not undo inserts already applied (spec.md §4.3). Returns the ids
// successfully inserted, in input order, and a combined error (if
// any) describing which ids failed.
func (c *Collection[T]) InsertMany(ctx context.Context, items []T) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	type result struct {
		index int
		id    string
		err   error
	}
	results := make([]result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.bulkConcurrency())
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			id, err := c.Insert(gctx, item)
			results[i] = result{index: i, id: id, err: err}
			return nil // collect errors individually; a partial batch is expected
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(items))
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		ids = append(ids, r.id)
	}
	return ids, errors.Join(errs...)
}

func (c *Collection[T]) bulkConcurrency() int {
	if c.cfg.BulkConcurrency <= 0 {
		return DefaultConfig().BulkConcurrency
	}
	return c.cfg.BulkConcurrency
}

// Get reads id, rehydrating via fromMap. ok is false if absent.
func (c *Collection[T]) Get(ctx context.Context, id string) (item T, ok bool, err error) {
	if err = c.checkOpen(); err != nil {
		return item, false, err
	}
	attrs, found, err := c.store.Get(ctx, id)
	if err != nil {
		return item, false, fmt.Errorf("collection: reading %q: %w", id, err)
	}
	if !found {
		return item, false, nil
	}
	item, err = c.fromMap(id, attrs)
	if err != nil {
		return item, false, fmt.Errorf("collection: decoding %q: %w", id, err)
	}
	return item, true, nil
}

// GetOrThrow is Get, but returns dberr.ErrEntityNotFound when absent.
func (c *Collection[T]) GetOrThrow(ctx context.Context, id string) (T, error) {
	item, ok, err := c.Get(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		var zero T
		return zero, dberr.ErrEntityNotFound
	}
	return item, nil
}

// GetMany returns a mapping for the subset of ids that exist; missing
// ids are simply absent from the result.
func (c *Collection[T]) GetMany(ctx context.Context, ids []string) (map[string]T, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[string]T, len(ids))
	for _, id := range ids {
		item, ok, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = item
		}
	}
	return out, nil
}

// GetAll rehydrates every non-reserved entity in the collection.
func (c *Collection[T]) GetAll(ctx context.Context) (map[string]T, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	all, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("collection: reading all entities: %w", err)
	}
	out := make(map[string]T, len(all))
	for id, attrs := range all {
		if storage.IsReserved(id) {
			continue
		}
		item, err := c.fromMap(id, attrs)
		if err != nil {
			return nil, fmt.Errorf("collection: decoding %q: %w", id, err)
		}
		out[id] = item
	}
	return out, nil
}

// Exists is a storage passthrough.
func (c *Collection[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	ok, err := c.store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("collection: checking existence of %q: %w", id, err)
	}
	return ok, nil
}

// Update requires item to carry a non-empty id and fails
// dberr.ErrEntityNotFound if that id is absent. Index maintenance
// removes the old attribute map's postings before inserting the new
// one.
func (c *Collection[T]) Update(ctx context.Context, item T) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	id := c.idOf(item)
	if id == "" {
		return fmt.Errorf("collection: update requires a non-empty id")
	}

	entry := c.locks.Acquire(id)
	defer c.locks.Release(entry)

	oldAttrs, found, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("collection: reading %q: %w", id, err)
	}
	if !found {
		return dberr.ErrEntityNotFound
	}

	newAttrs, err := c.toMap(item)
	if err != nil {
		return fmt.Errorf("collection: encoding %q: %w", id, err)
	}
	if err := c.store.Update(ctx, id, newAttrs); err != nil {
		return fmt.Errorf("collection: updating %q: %w", id, err)
	}
	c.indexes.RemoveAll(id, oldAttrs)
	c.indexes.InsertAll(id, newAttrs)
	c.logf("updated %q", id)
	return nil
}

// UpdateWhere reads id under its entity lock, applies fn, writes the
// result back, and returns the updated item.
func (c *Collection[T]) UpdateWhere(ctx context.Context, id string, fn func(T) T) (T, error) {
	var zero T
	if err := c.checkOpen(); err != nil {
		return zero, err
	}

	entry := c.locks.Acquire(id)
	defer c.locks.Release(entry)

	oldAttrs, found, err := c.store.Get(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("collection: reading %q: %w", id, err)
	}
	if !found {
		return zero, dberr.ErrEntityNotFound
	}
	current, err := c.fromMap(id, oldAttrs)
	if err != nil {
		return zero, fmt.Errorf("collection: decoding %q: %w", id, err)
	}

	updated := fn(current)
	newAttrs, err := c.toMap(updated)
	if err != nil {
		return zero, fmt.Errorf("collection: encoding %q: %w", id, err)
	}
	if err := c.store.Update(ctx, id, newAttrs); err != nil {
		return zero, fmt.Errorf("collection: updating %q: %w", id, err)
	}
	c.indexes.RemoveAll(id, oldAttrs)
	c.indexes.InsertAll(id, newAttrs)
	return updated, nil
}

// Upsert inserts item if its id is absent (or unset), else updates it,
// maintaining index consistency either way.
func (c *Collection[T]) Upsert(ctx context.Context, item T) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	id := c.idOf(item)
	if id == "" {
		id = uuid.NewString()
		item = c.withID(item, id)
	}

	entry := c.locks.Acquire(id)
	defer c.locks.Release(entry)

	oldAttrs, found, err := c.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("collection: reading %q: %w", id, err)
	}
	newAttrs, err := c.toMap(item)
	if err != nil {
		return "", fmt.Errorf("collection: encoding %q: %w", id, err)
	}
	if err := c.store.Upsert(ctx, id, newAttrs); err != nil {
		return "", fmt.Errorf("collection: upserting %q: %w", id, err)
	}
	if found {
		c.indexes.RemoveAll(id, oldAttrs)
	}
	c.indexes.InsertAll(id, newAttrs)
	return id, nil
}

// Delete removes id from storage and every index; it is idempotent.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	entry := c.locks.Acquire(id)
	defer c.locks.Release(entry)

	oldAttrs, found, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("collection: reading %q: %w", id, err)
	}
	if !found {
		return nil
	}
	if _, err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("collection: deleting %q: %w", id, err)
	}
	c.indexes.RemoveAll(id, oldAttrs)
	return nil
}

// DeleteOrThrow is Delete, but fails dberr.ErrEntityNotFound if id was
// absent.
func (c *Collection[T]) DeleteOrThrow(ctx context.Context, id string) error {
	ok, err := c.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return dberr.ErrEntityNotFound
	}
	return c.Delete(ctx, id)
}

// DeleteMany deletes every id in ids, per-id locked in iteration
// order under bounded concurrency, and returns the count actually
// deleted.
func (c *Collection[T]) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	var deleted int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.bulkConcurrency())
	for _, id := range ids {
		id := id
		g.Go(func() error {
			entry := c.locks.Acquire(id)
			defer c.locks.Release(entry)

			oldAttrs, found, err := c.store.Get(gctx, id)
			if err != nil {
				return fmt.Errorf("collection: reading %q: %w", id, err)
			}
			if !found {
				return nil
			}
			if _, err := c.store.Delete(gctx, id); err != nil {
				return fmt.Errorf("collection: deleting %q: %w", id, err)
			}
			c.indexes.RemoveAll(id, oldAttrs)
			atomic.AddInt64(&deleted, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(deleted), err
	}
	return int(deleted), nil
}

// DeleteAll clears storage, preserving reserved ids, and clears every
// index's entries.
func (c *Collection[T]) DeleteAll(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	all, err := c.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("collection: reading all entities: %w", err)
	}
	reserved := make(map[string]storage.Entity)
	for id, attrs := range all {
		if storage.IsReserved(id) {
			reserved[id] = attrs
		}
	}
	if err := c.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("collection: clearing storage: %w", err)
	}
	if len(reserved) > 0 {
		if err := c.store.InsertMany(ctx, reserved); err != nil {
			return fmt.Errorf("collection: restoring reserved ids: %w", err)
		}
	}
	c.indexes.RebuildAll(nil)
	return nil
}

// ---- query execution ----

// Find executes q against the collection per the planner of spec.md
// §4.3, returning matches in index order, or in ascending id order
// when no index was used (insertion order is not tracked).
func (c *Collection[T]) Find(ctx context.Context, q query.Query) ([]T, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	p := planFind(c.indexes, q)

	if p.indexed {
		out := make([]T, 0, len(p.candidateIDs))
		for _, id := range p.candidateIDs {
			attrs, found, err := c.store.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("collection: reading %q: %w", id, err)
			}
			if !found || !p.residual.Matches(attrs) {
				continue
			}
			item, err := c.fromMap(id, attrs)
			if err != nil {
				return nil, fmt.Errorf("collection: decoding %q: %w", id, err)
			}
			out = append(out, item)
		}
		return out, nil
	}

	all, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("collection: reading all entities: %w", err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		if storage.IsReserved(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		attrs := all[id]
		if !q.Matches(attrs) {
			continue
		}
		item, err := c.fromMap(id, attrs)
		if err != nil {
			return nil, fmt.Errorf("collection: decoding %q: %w", id, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// FindOne returns the first match for q, if any.
func (c *Collection[T]) FindOne(ctx context.Context, q query.Query) (item T, ok bool, err error) {
	matches, err := c.Find(ctx, q)
	if err != nil {
		return item, false, err
	}
	if len(matches) == 0 {
		return item, false, nil
	}
	return matches[0], true, nil
}

// FindOneOrThrow is FindOne, but fails dberr.ErrEntityNotFound when no
// match exists.
func (c *Collection[T]) FindOneOrThrow(ctx context.Context, q query.Query) (T, error) {
	item, ok, err := c.FindOne(ctx, q)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		var zero T
		return zero, dberr.ErrEntityNotFound
	}
	return item, nil
}

// CountWhere counts matches for q; a nil q counts every entity.
func (c *Collection[T]) CountWhere(ctx context.Context, q query.Query) (int, error) {
	if q == nil {
		q = query.All{}
	}
	matches, err := c.Find(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// Stream returns a finite, non-restartable channel of every entity in
// the collection (spec.md §4.3 "lazy asynchronous sequence"). The
// channel is closed when exhausted or ctx is canceled.
func (c *Collection[T]) Stream(ctx context.Context) (<-chan T, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	all, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("collection: reading all entities: %w", err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		if !storage.IsReserved(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make(chan T)
	go func() {
		defer close(out)
		for _, id := range ids {
			item, err := c.fromMap(id, all[id])
			if err != nil {
				continue
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ---- index management ----

func (c *Collection[T]) CreateIndex(ctx context.Context, field string, variant index.Variant) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.indexes.CreateIndex(field, variant); err != nil {
		return err
	}
	all, err := c.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("collection: reading all entities: %w", err)
	}
	idx, _ := c.indexes.Get(field)
	for id, attrs := range all {
		if storage.IsReserved(id) {
			continue
		}
		idx.Insert(id, attrs)
	}
	return nil
}

func (c *Collection[T]) RemoveIndex(field string) error {
	return c.indexes.RemoveIndex(field)
}

// RebuildAllIndexes clears and repopulates every registered index from
// the current entity set.
func (c *Collection[T]) RebuildAllIndexes(ctx context.Context) error {
	all, err := c.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("collection: reading all entities: %w", err)
	}
	clean := make(map[string]storage.Entity, len(all))
	for id, attrs := range all {
		if !storage.IsReserved(id) {
			clean[id] = attrs
		}
	}
	c.indexes.RebuildAll(clean)
	return nil
}

// ClearAllIndexEntries empties every registered index without
// unregistering it.
func (c *Collection[T]) ClearAllIndexEntries() {
	for _, field := range c.indexes.Fields() {
		if idx, ok := c.indexes.Get(field); ok {
			idx.Clear()
		}
	}
}

// RemoveAllIndexes unregisters every index.
func (c *Collection[T]) RemoveAllIndexes() {
	for _, field := range c.indexes.Fields() {
		_ = c.indexes.RemoveIndex(field)
	}
}

// ---- lifecycle ----

// Flush is a no-op placeholder propagation point for collaborators
// that buffer writes; the in-memory and sqlite backends in this
// module write through immediately, so Flush currently has nothing to
// do beyond satisfying the contract collaborators may rely on.
func (c *Collection[T]) Flush(ctx context.Context) error {
	return c.checkOpen()
}

// Dispose marks the collection closed; subsequent operations fail
// with dberr.ErrCollectionDisposed. Idempotent.
func (c *Collection[T]) Dispose(ctx context.Context) error {
	c.disposed.Store(true)
	return nil
}
