// Package memory implements storage.Port entirely in process memory —
// the simplest reference backend, used by the core's own tests and
// suitable for short-lived or throwaway collections.
package memory

import (
	"context"
	"sync"

	"github.com/entidb/entidb/dberr"
	"github.com/entidb/entidb/storage"
)

// Store is an in-memory storage.Port. The zero value is not usable;
// construct with New.
type Store struct {
	mu   sync.RWMutex
	open bool
	data map[string]storage.Entity
}

// New creates an in-memory store. The path argument is accepted for
// symmetry with on-disk backends (storage/sqlite.New) but ignored: an
// empty path, as in the teacher's memory.New(""), is the common case.
func New(_ string) *Store {
	return &Store{data: make(map[string]storage.Entity)}
}

func (s *Store) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]storage.Entity)
	}
	s.open = true
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *Store) requireOpen() error {
	if !s.IsOpen() {
		return dberr.New(dberr.KindStorage, "not-open", "store is not open")
	}
	return nil
}

func cloneEntity(e storage.Entity) storage.Entity {
	out := make(storage.Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func (s *Store) Get(_ context.Context, id string) (storage.Entity, bool, error) {
	if err := s.requireOpen(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return nil, false, nil
	}
	return cloneEntity(e), true, nil
}

func (s *Store) GetAll(_ context.Context) (map[string]storage.Entity, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]storage.Entity, len(s.data))
	for id, e := range s.data {
		out[id] = cloneEntity(e)
	}
	return out, nil
}

func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	if err := s.requireOpen(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok, nil
}

func (s *Store) Insert(_ context.Context, id string, data storage.Entity) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; ok {
		return dberr.New(dberr.KindStorage, "entity-already-exists", id)
	}
	s.data[id] = cloneEntity(data)
	return nil
}

func (s *Store) Update(_ context.Context, id string, data storage.Entity) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return dberr.New(dberr.KindStorage, "entity-not-found", id)
	}
	s.data[id] = cloneEntity(data)
	return nil
}

func (s *Store) Upsert(_ context.Context, id string, data storage.Entity) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = cloneEntity(data)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	if err := s.requireOpen(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return false, nil
	}
	delete(s.data, id)
	return true, nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]storage.Entity)
	return nil
}

func (s *Store) InsertMany(_ context.Context, items map[string]storage.Entity) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, data := range items {
		s.data[id] = cloneEntity(data)
	}
	return nil
}

var _ storage.Port = (*Store)(nil)
