package main

import (
	"context"

	"github.com/entidb/entidb"
	"github.com/entidb/entidb/collection"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/storage/sqlite"
)

// openCollection opens the sqlite-backed store at dbPath and wraps
// the named collection around it. Callers are responsible for
// disposing the returned collection and closing the store.
func openCollection(ctx context.Context, name string) (*entidb.Context, storage.Port, *collection.Collection[doc], error) {
	ectx, err := openContext()
	if err != nil {
		return nil, nil, nil, err
	}

	store := sqlite.New(dbPath)
	if err := store.Open(ctx); err != nil {
		return nil, nil, nil, err
	}

	coll := entidb.NewCollection[doc](ectx, name, store, docFromMap, docToMap, docID, docWithID)
	return ectx, store, coll, nil
}
