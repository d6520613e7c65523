// Package sqlite implements storage.Port on top of a single SQLite
// table, using the pure-Go, cgo-free ncruces/go-sqlite3 driver (backed
// by the wazero WebAssembly runtime) so the backend has no native
// toolchain dependency — the same property that makes the teacher's
// own sqlite layer embeddable in a CLI binary.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/internal/debug"
	"github.com/entidb/entidb/storage"
	"github.com/entidb/entidb/value"
)

// Store is a storage.Port backed by a SQLite file (or ":memory:").
type Store struct {
	path string

	mu   sync.RWMutex
	db   *sql.DB
	open bool
}

// New returns a Store bound to the given file path. The file is
// created on first Open if it does not exist.
func New(path string) *Store {
	return &Store{path: path}
}

// migration mirrors the teacher's Migration{Name, Func} ordered-list
// shape in internal/storage/sqlite/migrations.go, trimmed to the one
// schema EntiDB needs: a single opaque entities table.
type migration struct {
	name string
	fn   func(*sql.DB) error
}

var migrations = []migration{
	{"entities_table", migrateEntitiesTable},
}

func migrateEntitiesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			id   TEXT PRIMARY KEY,
			data BLOB NOT NULL
		);
	`)
	return err
}

func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}

	if s.path != "" && s.path != ":memory:" {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("entidb/sqlite: create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("entidb/sqlite: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return fmt.Errorf("entidb/sqlite: apply pragma %q: %w", p, err)
		}
	}

	for _, m := range migrations {
		debug.Logf("entidb/sqlite: running migration %s", m.name)
		if err := m.fn(db); err != nil {
			_ = db.Close()
			return fmt.Errorf("entidb/sqlite: migration %s: %w", m.name, err)
		}
	}

	s.db = db
	s.open = true
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	return s.db.Close()
}

func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *Store) requireOpen() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, dberr.New(dberr.KindStorage, "not-open", "store is not open")
	}
	return s.db, nil
}

func encode(data storage.Entity) ([]byte, error) {
	raw := value.RawFromMap(data)
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("entidb/sqlite: encode entity: %w", err)
	}
	return b, nil
}

func decode(blob []byte) (storage.Entity, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("entidb/sqlite: decode entity: %w", err)
	}
	return value.MapFromRaw(raw), nil
}

func (s *Store) Get(ctx context.Context, id string) (storage.Entity, bool, error) {
	db, err := s.requireOpen()
	if err != nil {
		return nil, false, err
	}
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT data FROM entities WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("entidb/sqlite: get %s: %w", id, err)
	}
	e, err := decode(blob)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (s *Store) GetAll(ctx context.Context) (map[string]storage.Entity, error) {
	db, err := s.requireOpen()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, data FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("entidb/sqlite: getAll: %w", err)
	}
	defer rows.Close()

	out := make(map[string]storage.Entity)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("entidb/sqlite: scan: %w", err)
		}
		e, err := decode(blob)
		if err != nil {
			return nil, err
		}
		out[id] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entidb/sqlite: iterate: %w", err)
	}
	return out, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	db, err := s.requireOpen()
	if err != nil {
		return false, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ?`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("entidb/sqlite: exists %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) Insert(ctx context.Context, id string, data storage.Entity) error {
	db, err := s.requireOpen()
	if err != nil {
		return err
	}
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return dberr.New(dberr.KindStorage, "entity-already-exists", id)
	}
	blob, err := encode(data)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO entities (id, data) VALUES (?, ?)`, id, blob); err != nil {
		return fmt.Errorf("entidb/sqlite: insert %s: %w", id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, data storage.Entity) error {
	db, err := s.requireOpen()
	if err != nil {
		return err
	}
	blob, err := encode(data)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE entities SET data = ? WHERE id = ?`, blob, id)
	if err != nil {
		return fmt.Errorf("entidb/sqlite: update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("entidb/sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return dberr.New(dberr.KindStorage, "entity-not-found", id)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, id string, data storage.Entity) error {
	db, err := s.requireOpen()
	if err != nil {
		return err
	}
	blob, err := encode(data)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO entities (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, id, blob)
	if err != nil {
		return fmt.Errorf("entidb/sqlite: upsert %s: %w", id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	db, err := s.requireOpen()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("entidb/sqlite: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("entidb/sqlite: rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	db, err := s.requireOpen()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("entidb/sqlite: deleteAll: %w", err)
	}
	return nil
}

// InsertMany mirrors the batch-insert idiom of the teacher's
// internal/storage/sqlite/batch_ops.go: a single transaction wrapping
// a prepared statement. A failure partway through rolls back the whole
// batch, so no row of it is written. Existing ids are overwritten.
func (s *Store) InsertMany(ctx context.Context, items map[string]storage.Entity) error {
	db, err := s.requireOpen()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("entidb/sqlite: insertMany begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`)
	if err != nil {
		return fmt.Errorf("entidb/sqlite: insertMany prepare: %w", err)
	}
	defer stmt.Close()

	for id, data := range items {
		blob, err := encode(data)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, id, blob); err != nil {
			return fmt.Errorf("entidb/sqlite: insertMany %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("entidb/sqlite: insertMany commit: %w", err)
	}
	return nil
}

var _ storage.Port = (*Store)(nil)
