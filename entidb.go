// Package entidb ties the core subsystems (storage, index, query,
// collection, txn, migration) together behind a single engine-level
// Context, replacing the global config singleton the teacher's own
// config package relies on with one explicit object callers thread
// through (Design Notes §9). Debug logging stays a process-wide gate
// (internal/debug), the same shape as the teacher's own debug.Logf —
// Context.Logf only applies the loaded Config's debug flag to it.
package entidb

import (
	"github.com/entidb/entidb/collection"
	"github.com/entidb/entidb/engineconfig"
	"github.com/entidb/entidb/internal/debug"
	"github.com/entidb/entidb/storage"
)

// Context bundles the configuration every collection and engine
// component needs, so none of them load engineconfig themselves.
// Debug logging remains the shared
// internal/debug gate; Logf is a thin forward onto it.
type Context struct {
	Config *engineconfig.Config
}

// NewContext builds a Context from an already-loaded Config, applying
// its debug flag to the process-wide internal/debug gate.
func NewContext(cfg *engineconfig.Config) *Context {
	cfg.ApplyDebugGate()
	return &Context{Config: cfg}
}

// Open loads configuration via engineconfig.Load and builds a Context
// from it, for callers that don't need to customize discovery.
func Open() (*Context, error) {
	cfg, err := engineconfig.Load()
	if err != nil {
		return nil, err
	}
	return NewContext(cfg), nil
}

// collectionConfig derives a collection.Config from the Context's
// engine-wide defaults.
func (c *Context) collectionConfig() collection.Config {
	return collection.Config{
		MaxCachedLocks:     c.Config.LockCacheSize(),
		BulkConcurrency:    c.Config.BulkConcurrency(),
		EnableDebugLogging: c.Config.DebugEnabled(),
	}
}

// NewCollection builds a typed Collection over store, supplying
// defaults (lock cache size, bulk concurrency, debug logging) from
// this Context instead of requiring every call site to repeat them.
func NewCollection[T any](
	ctx *Context,
	name string,
	store storage.Port,
	fromMap collection.FromMapFunc[T],
	toMap collection.ToMapFunc[T],
	idOf collection.IDFunc[T],
	withID collection.WithIDFunc[T],
) *collection.Collection[T] {
	return collection.New(name, store, fromMap, toMap, idOf, withID, ctx.collectionConfig())
}

// Logf writes through the shared debug logger, gated by the Context's
// configured debug flag.
func (c *Context) Logf(format string, args ...interface{}) {
	debug.Logf(format, args...)
}
