// Package migration implements the Migration Engine (spec.md §4.5):
// a semver version graph walked by greedy path construction, strategy
// execution against the full entity set, pre-migration backup, and a
// ring-trimmed audit log.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/entidb/entidb/storage"
)

// ErrNotInvertible is returned by ApplyDown when a strategy declares
// no inverse transform.
var ErrNotInvertible = errors.New("migration: strategy has no inverse")

// Kind names which shape of transform a Strategy carries, matching
// spec.md §4.5's three strategy types.
type Kind string

const (
	KindGeneral      Kind = "general"
	KindSingleEntity Kind = "single-entity"
	KindNoOp         Kind = "no-op"
)

// MapTransform rewrites the full entity set at once, letting a
// strategy reshape relationships across entities.
type MapTransform func(ctx context.Context, entities map[string]storage.Entity) (map[string]storage.Entity, error)

// EntityTransform rewrites a single entity; the engine maps it across
// every entity in the set.
type EntityTransform func(ctx context.Context, id string, attrs storage.Entity) (storage.Entity, error)

// Strategy transforms the entity set from FromVersion to ToVersion (or
// back, via ApplyDown, if an inverse transform was supplied).
type Strategy struct {
	FromVersion string
	ToVersion   string
	Description string
	kind        Kind

	up   MapTransform
	down MapTransform
}

func (s Strategy) Kind() Kind { return s.kind }

// NewGeneralStrategy builds a strategy whose up/down transforms see
// the full entity map, for migrations needing cross-entity logic
// (renaming a field that appears in some entities but not others,
// merging two collections' worth of ids, etc). down may be nil, in
// which case ApplyDown reports ErrNotInvertible.
func NewGeneralStrategy(from, to, description string, up, down MapTransform) Strategy {
	return Strategy{FromVersion: from, ToVersion: to, Description: description, kind: KindGeneral, up: up, down: down}
}

// NewSingleEntityStrategy builds a strategy whose transforms see one
// entity at a time; the engine applies it across every entity in the
// set. down may be nil.
func NewSingleEntityStrategy(from, to, description string, up, down EntityTransform) Strategy {
	return Strategy{
		FromVersion: from,
		ToVersion:   to,
		Description: description,
		kind:        KindSingleEntity,
		up:          mapOverEntities(up),
		down:        mapOverEntities(down),
	}
}

// NewNoOpStrategy builds a version-bump strategy that leaves the
// entity set unchanged in both directions.
func NewNoOpStrategy(from, to, description string) Strategy {
	identity := func(_ context.Context, entities map[string]storage.Entity) (map[string]storage.Entity, error) {
		return entities, nil
	}
	return Strategy{FromVersion: from, ToVersion: to, Description: description, kind: KindNoOp, up: identity, down: identity}
}

func mapOverEntities(fn EntityTransform) MapTransform {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, entities map[string]storage.Entity) (map[string]storage.Entity, error) {
		out := make(map[string]storage.Entity, len(entities))
		for id, attrs := range entities {
			transformed, err := fn(ctx, id, attrs)
			if err != nil {
				return nil, fmt.Errorf("migration: transforming %q: %w", id, err)
			}
			out[id] = transformed
		}
		return out, nil
	}
}

// Apply runs the up transform.
func (s Strategy) Apply(ctx context.Context, entities map[string]storage.Entity) (map[string]storage.Entity, error) {
	return s.up(ctx, entities)
}

// ApplyDown runs the down transform, failing with ErrNotInvertible if
// the strategy didn't supply one.
func (s Strategy) ApplyDown(ctx context.Context, entities map[string]storage.Entity) (map[string]storage.Entity, error) {
	if s.down == nil {
		return nil, ErrNotInvertible
	}
	return s.down(ctx, entities)
}
