package entidb

import (
	"context"
	"os"
	"testing"

	"github.com/entidb/entidb/engineconfig"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/storage/memory"
	"github.com/entidb/entidb/value"
)

type widget struct {
	ID   string
	Name string
}

func widgetFromMap(id string, attrs storage.Entity) (widget, error) {
	name, _ := attrs["name"].Str()
	return widget{ID: id, Name: name}, nil
}

func widgetToMap(w widget) (storage.Entity, error) {
	return storage.Entity{"name": value.String(w.Name)}, nil
}

func widgetID(w widget) string                { return w.ID }
func widgetWithID(w widget, id string) widget { w.ID = id; return w }

func TestNewCollectionUsesContextDefaults(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, err := engineconfig.Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Set("lock-cache-size", 64)
	ctx := NewContext(cfg)

	store := memory.New("")
	bgCtx := context.Background()
	if err := store.Open(bgCtx); err != nil {
		t.Fatal(err)
	}

	coll := NewCollection[widget](ctx, "widgets", store, widgetFromMap, widgetToMap, widgetID, widgetWithID)
	id, err := coll.Insert(bgCtx, widget{Name: "sprocket"})
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := coll.Get(bgCtx, id)
	if err != nil || !ok {
		t.Fatalf("expected inserted widget, ok=%v err=%v", ok, err)
	}
	if got.Name != "sprocket" {
		t.Fatalf("expected name sprocket, got %q", got.Name)
	}
}
