package main

import (
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// doc is a JSON-shaped document used by every subcommand: it carries
// an id plus an arbitrary attribute bag, letting one generic
// Collection[doc] stand in for whatever collection name the caller
// passes on the command line.
type doc struct {
	ID    string
	Attrs storage.Entity
}

func docFromMap(id string, attrs storage.Entity) (doc, error) {
	return doc{ID: id, Attrs: attrs}, nil
}

func docToMap(d doc) (storage.Entity, error) {
	return d.Attrs, nil
}

func docID(d doc) string { return d.ID }

func docWithID(d doc, id string) doc {
	d.ID = id
	return d
}

// docFromJSON builds a doc from a decoded JSON object.
func docFromJSON(raw map[string]interface{}) doc {
	return doc{Attrs: value.MapFromRaw(raw)}
}

// toJSON flattens a doc back into plain Go values for json.Marshal.
func (d doc) toJSON() map[string]interface{} {
	out := value.RawFromMap(d.Attrs)
	out["id"] = d.ID
	return out
}
