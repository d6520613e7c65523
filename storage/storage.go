// Package storage defines the Storage Port: the abstract key→attribute-map
// contract every higher layer (index, collection, transaction, migration)
// consumes. Concrete backends (storage/memory, storage/sqlite) implement
// Port; the core never depends on a concrete backend directly.
package storage

import (
	"context"

	"github.com/entidb/entidb/value"
)

// Reserved identifiers never participate in queries, indexes, or
// getAll results visible to user-facing operations.
const (
	SchemaVersionID     = "__schema_version__"
	MigrationHistoryID  = "__migration_history__"
)

// IsReserved reports whether id is a reserved identifier (begins with
// a double underscore), per the GLOSSARY definition.
func IsReserved(id string) bool {
	return len(id) >= 2 && id[0] == '_' && id[1] == '_'
}

// Entity is an attribute map keyed by field name.
type Entity = map[string]value.Value

// Port is the contract every higher layer is built against. All
// operations are sequentially consistent within a single process;
// concurrency control is the caller's responsibility (the collection
// and transaction layers provide it). Implementations must include
// reserved ids in GetAll.
type Port interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	IsOpen() bool

	Get(ctx context.Context, id string) (Entity, bool, error)
	GetAll(ctx context.Context) (map[string]Entity, error)
	Exists(ctx context.Context, id string) (bool, error)

	// Insert fails if id already exists.
	Insert(ctx context.Context, id string, data Entity) error
	// Update fails if id is absent.
	Update(ctx context.Context, id string, data Entity) error
	// Upsert succeeds regardless of whether id exists.
	Upsert(ctx context.Context, id string, data Entity) error
	// Delete is idempotent; it reports whether a deletion occurred.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteAll removes every entry, including reserved ids.
	DeleteAll(ctx context.Context) error
	// InsertMany is a best-effort bulk insert; atomicity at this layer
	// is not guaranteed — callers that need atomicity use the
	// transaction engine.
	InsertMany(ctx context.Context, items map[string]Entity) error
}
