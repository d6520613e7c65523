package migration

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// tomlFile is the shape of a declarative migrations.toml file: one
// [[strategy]] table per version step, covering the common no-op and
// field-rename/default cases without writing Go — the same boilerplate
// reduction the teacher's migrations/0NN_*.go files show dozens of
// hand-written instances of.
type tomlFile struct {
	Strategy []tomlStrategy `toml:"strategy"`
}

type tomlStrategy struct {
	From        string            `toml:"from"`
	To          string            `toml:"to"`
	Description string            `toml:"description"`
	RenameField map[string]string `toml:"rename_field"`
	SetDefault  map[string]string `toml:"set_default"`
}

// LoadTOMLStrategies reads path and builds one single-entity Strategy
// per [[strategy]] table. rename_field renames attribute keys;
// set_default fills in a string-valued default for any attribute key
// absent after renaming. A table with neither is a no-op version
// bump and is its own inverse. Rename/default strategies built this
// way have no inverse (ApplyDown reports ErrNotInvertible).
func LoadTOMLStrategies(path string) ([]Strategy, error) {
	var doc tomlFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("migration: decoding %s: %w", path, err)
	}

	strategies := make([]Strategy, 0, len(doc.Strategy))
	for _, ts := range doc.Strategy {
		if ts.From == "" || ts.To == "" {
			return nil, fmt.Errorf("migration: %s: strategy entry missing from/to", path)
		}
		if len(ts.RenameField) == 0 && len(ts.SetDefault) == 0 {
			strategies = append(strategies, NewNoOpStrategy(ts.From, ts.To, ts.Description))
			continue
		}
		strategies = append(strategies, NewSingleEntityStrategy(ts.From, ts.To, ts.Description, ts.transform(), nil))
	}
	return strategies, nil
}

func (ts tomlStrategy) transform() EntityTransform {
	return func(_ context.Context, _ string, attrs storage.Entity) (storage.Entity, error) {
		out := make(storage.Entity, len(attrs))
		for k, v := range attrs {
			out[k] = v
		}
		for from, to := range ts.RenameField {
			if v, ok := out[from]; ok {
				out[to] = v
				delete(out, from)
			}
		}
		for field, def := range ts.SetDefault {
			if _, ok := out[field]; !ok {
				out[field] = value.String(def)
			}
		}
		return out, nil
	}
}
