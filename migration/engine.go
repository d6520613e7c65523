package migration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/internal/debug"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Config holds the Migration Engine's tunables (spec.md §4.5).
type Config struct {
	TargetVersion               string
	AutoMigrate                 bool
	CreateBackupBeforeMigration bool
	MaxLogEntries               int
	ValidateAfterEachStep       bool
}

// DefaultConfig returns sane defaults for an engine that does not
// auto-migrate and keeps a 100-entry log ring.
func DefaultConfig() Config {
	return Config{TargetVersion: "0.0.0", MaxLogEntries: 100}
}

// Snapshot is a point-in-time copy of an entity set that can verify
// its own integrity before being restored.
type Snapshot interface {
	Entities() map[string]storage.Entity
	Verify() error
}

// Backup produces Snapshots. The default in-memory Backup simply
// retains the map; a persistence-backed collaborator (e.g. writing to
// disk with checksums) can implement the same interface.
type Backup interface {
	Snapshot(ctx context.Context, entities map[string]storage.Entity) (Snapshot, error)
}

// memorySnapshot is the in-memory fallback Snapshot: a deep copy with
// no external integrity check beyond "the copy exists."
type memorySnapshot struct {
	entities map[string]storage.Entity
}

func (s memorySnapshot) Entities() map[string]storage.Entity { return s.entities }
func (s memorySnapshot) Verify() error                       { return nil }

// MemoryBackup is the in-memory fallback Backup collaborator used
// when the caller doesn't wire a checksum-verifying one.
type MemoryBackup struct{}

func (MemoryBackup) Snapshot(_ context.Context, entities map[string]storage.Entity) (Snapshot, error) {
	cp := make(map[string]storage.Entity, len(entities))
	for id, attrs := range entities {
		inner := make(storage.Entity, len(attrs))
		for k, v := range attrs {
			inner[k] = v
		}
		cp[id] = inner
	}
	return memorySnapshot{entities: cp}, nil
}

// Engine runs migrations against a single Storage Port.
type Engine struct {
	store       storage.Port
	strategies  []Strategy
	cfg         Config
	backup      Backup
	log         *Log
	historyOnce sync.Once
}

// NewEngine builds an Engine over store with the given strategies
// (order irrelevant; buildPath sorts them) and config. backup may be
// nil, in which case MemoryBackup is used.
func NewEngine(store storage.Port, strategies []Strategy, cfg Config, backup Backup) *Engine {
	if backup == nil {
		backup = MemoryBackup{}
	}
	if cfg.MaxLogEntries <= 0 {
		cfg.MaxLogEntries = 100
	}
	return &Engine{store: store, strategies: strategies, cfg: cfg, backup: backup, log: NewLog(cfg.MaxLogEntries)}
}

// Log returns the engine's audit log.
func (e *Engine) Log() *Log { return e.log }

// Strategies returns the engine's registered migration strategies.
func (e *Engine) Strategies() []Strategy { return e.strategies }

// ensureHistoryLoaded hydrates e.log from __migration_history__ the
// first time the engine touches it, mirroring CurrentVersion's
// lazy-seed-on-absence handling of __schema_version__.
func (e *Engine) ensureHistoryLoaded(ctx context.Context) {
	e.historyOnce.Do(func() {
		attrs, ok, err := e.store.Get(ctx, storage.MigrationHistoryID)
		if err != nil || !ok {
			return
		}
		e.log = logFromEntity(attrs, e.cfg.MaxLogEntries)
	})
}

// persistHistory upserts the audit ring into storage.MigrationHistoryID
// so it survives across Engine instances the same way schema version
// does.
func (e *Engine) persistHistory(ctx context.Context) {
	if err := e.store.Upsert(ctx, storage.MigrationHistoryID, e.log.toEntity()); err != nil {
		debug.Logf("migration: persisting history ring: %v", err)
	}
}

func vtag(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// CurrentVersion reads __schema_version__, initializing it to 0.0.0
// if absent.
func (e *Engine) CurrentVersion(ctx context.Context) (string, error) {
	attrs, ok, err := e.store.Get(ctx, storage.SchemaVersionID)
	if err != nil {
		return "", fmt.Errorf("migration: reading schema version: %w", err)
	}
	if !ok {
		if err := e.store.Insert(ctx, storage.SchemaVersionID, storage.Entity{
			"version":   value.String("0.0.0"),
			"updatedAt": value.Time(time.Now()),
		}); err != nil {
			return "", dberr.Wrap(dberr.KindMigration, "initialization-failed", err, "persisting initial schema version")
		}
		return "0.0.0", nil
	}
	v, _ := attrs["version"].Str()
	return v, nil
}

// Init reads the current schema version and, if AutoMigrate is set
// and it differs from the target, runs Migrate.
func (e *Engine) Init(ctx context.Context) (*Result, error) {
	current, err := e.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	if !e.cfg.AutoMigrate || vtag(current) == vtag(e.cfg.TargetVersion) {
		return nil, nil
	}
	return e.Migrate(ctx, e.cfg.TargetVersion)
}

// step is one strategy applied in one direction along a path.
type step struct {
	strategy Strategy
	forward  bool
}

// buildPath greedily selects strategies walking current toward target
// (spec.md §4.5 "Path construction"), failing with ErrNoMigrationPath
// before any mutation if target is unreachable.
func buildPath(strategies []Strategy, current, target string) ([]step, error) {
	cmp := semver.Compare(vtag(current), vtag(target))
	if cmp == 0 {
		return nil, nil
	}

	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	if cmp < 0 {
		sort.SliceStable(sorted, func(i, j int) bool {
			return semver.Compare(vtag(sorted[i].FromVersion), vtag(sorted[j].FromVersion)) < 0
		})
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			return semver.Compare(vtag(sorted[i].ToVersion), vtag(sorted[j].ToVersion)) > 0
		})
	}

	var path []step
	seen := map[string]bool{}
	for vtag(current) != vtag(target) {
		if seen[vtag(current)] {
			return nil, dberr.New(dberr.KindMigration, "no-path", fmt.Sprintf("cycle detected at version %s", current))
		}
		seen[vtag(current)] = true

		advanced := false
		if cmp < 0 {
			for _, s := range sorted {
				if vtag(s.FromVersion) != vtag(current) {
					continue
				}
				if semver.Compare(vtag(s.ToVersion), vtag(target)) > 0 {
					continue
				}
				path = append(path, step{strategy: s, forward: true})
				current = s.ToVersion
				advanced = true
				break
			}
		} else {
			for _, s := range sorted {
				if vtag(s.ToVersion) != vtag(current) {
					continue
				}
				if semver.Compare(vtag(s.FromVersion), vtag(target)) < 0 {
					continue
				}
				path = append(path, step{strategy: s, forward: false})
				current = s.FromVersion
				advanced = true
				break
			}
		}
		if !advanced {
			return nil, dberr.New(dberr.KindMigration, "no-path", fmt.Sprintf("no migration path from %s to %s", current, target))
		}
	}
	return path, nil
}

// Result summarizes a completed (or attempted) migration run.
type Result struct {
	FromVersion      string
	ToVersion        string
	StepsApplied     int
	EntitiesAffected int
	Duration         time.Duration
}

// Migrate walks the version graph from the current schema version to
// target, executing every step in spec.md §4.5's "Execute" sequence.
func (e *Engine) Migrate(ctx context.Context, target string) (*Result, error) {
	start := time.Now()
	e.ensureHistoryLoaded(ctx)
	current, err := e.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	path, err := buildPath(e.strategies, current, target)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		e.log.Append(Entry{
			Outcome:     OutcomeSkipped,
			FromVersion: current,
			ToVersion:   target,
			At:          time.Now(),
		})
		e.persistHistory(ctx)
		return &Result{FromVersion: current, ToVersion: target}, nil
	}

	all, err := e.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: loading entities: %w", err)
	}
	entities := make(map[string]storage.Entity, len(all))
	for id, attrs := range all {
		if !storage.IsReserved(id) {
			entities[id] = attrs
		}
	}

	var snap Snapshot
	if e.cfg.CreateBackupBeforeMigration {
		snap, err = e.backup.Snapshot(ctx, entities)
		if err != nil {
			return nil, fmt.Errorf("migration: creating backup: %w", err)
		}
	}

	transformed := entities
	for _, st := range path {
		var stepErr error
		if st.forward {
			transformed, stepErr = st.strategy.Apply(ctx, transformed)
		} else {
			transformed, stepErr = st.strategy.ApplyDown(ctx, transformed)
		}
		if stepErr != nil {
			return nil, e.fail(ctx, current, target, snap, stepErr)
		}
		if e.cfg.ValidateAfterEachStep {
			if valErr := validateEntities(transformed); valErr != nil {
				return nil, e.fail(ctx, current, target, snap, valErr)
			}
		}
	}

	if err := writeBack(ctx, e.store, transformed); err != nil {
		return nil, e.fail(ctx, current, target, snap, err)
	}

	if err := e.store.Upsert(ctx, storage.SchemaVersionID, storage.Entity{
		"version":   value.String(target),
		"updatedAt": value.Time(time.Now()),
	}); err != nil {
		return nil, e.fail(ctx, current, target, snap, err)
	}

	result := &Result{
		FromVersion:      current,
		ToVersion:        target,
		StepsApplied:     len(path),
		EntitiesAffected: len(transformed),
		Duration:         time.Since(start),
	}
	e.log.Append(Entry{
		Outcome:          OutcomeSuccess,
		FromVersion:      current,
		ToVersion:        target,
		EntitiesAffected: result.EntitiesAffected,
		Duration:         result.Duration,
		At:               time.Now(),
	})
	e.persistHistory(ctx)
	debug.Logf("migration: %s -> %s, %d steps, %d entities in %s", current, target, result.StepsApplied, result.EntitiesAffected, result.Duration)
	return result, nil
}

// validateEntities is the minimal post-step validator spec.md §4.5
// calls for: every id non-empty, every value map-shaped (trivially
// true for storage.Entity, so only the id check has teeth).
func validateEntities(entities map[string]storage.Entity) error {
	for id, attrs := range entities {
		if id == "" {
			return dberr.New(dberr.KindMigration, "step-failed", "migration produced an empty entity id")
		}
		if attrs == nil {
			return dberr.New(dberr.KindMigration, "step-failed", fmt.Sprintf("migration produced a nil attribute map for %q", id))
		}
	}
	return nil
}

func writeBack(ctx context.Context, store storage.Port, entities map[string]storage.Entity) error {
	all, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("migration: reading existing ids for write-back: %w", err)
	}
	for id := range all {
		if storage.IsReserved(id) {
			continue
		}
		if _, err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("migration: clearing %q before write-back: %w", id, err)
		}
	}
	if err := store.InsertMany(ctx, entities); err != nil {
		return fmt.Errorf("migration: writing back transformed entities: %w", err)
	}
	return nil
}

// fail implements spec.md §4.5's "Failure path": verify and restore
// the snapshot if one was taken, record a failed (or rolled-back) log
// entry, and wrap the cause as a step-failed error, or rollback-failed
// if the restore itself failed.
func (e *Engine) fail(ctx context.Context, from, to string, snap Snapshot, cause error) error {
	restored := false
	var restoreErr error
	if snap != nil {
		if verifyErr := snap.Verify(); verifyErr != nil {
			restoreErr = fmt.Errorf("snapshot failed integrity check: %w", verifyErr)
		} else if err := writeBack(ctx, e.store, snap.Entities()); err != nil {
			restoreErr = err
		} else {
			restored = true
		}
	}

	outcome := OutcomeFailed
	if restored {
		outcome = OutcomeRolledBack
	}
	e.log.Append(Entry{
		Outcome:     outcome,
		FromVersion: from,
		ToVersion:   to,
		Error:       cause.Error(),
		At:          time.Now(),
	})
	e.persistHistory(ctx)

	if restoreErr != nil {
		return dberr.Wrap(dberr.KindMigration, "rollback-failed", restoreErr, fmt.Sprintf("migration failed (%v) and snapshot restore also failed", cause))
	}
	msg := "migration step failed, snapshot restored"
	if !restored {
		msg = "migration step failed, no snapshot was taken"
	}
	return dberr.Wrap(dberr.KindMigration, "step-failed", cause, msg)
}
