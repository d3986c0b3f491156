// Package memory is the reference storage backend: an in-process map, never
// durable across restarts. Registered under (storage, "memory").
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hiveforge/hived/internal/registry"
	"github.com/hiveforge/hived/internal/storage"
)

// Store is an in-memory, mutex-guarded implementation of storage.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Get(_ context.Context, collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.data[collection]
	if !ok {
		return nil, storage.ErrNotFound
	}
	value, ok := coll[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *Store) Put(_ context.Context, collection, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.data[collection]
	if !ok {
		coll = make(map[string][]byte)
		s.data[collection] = coll
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	coll[key] = stored
	return nil
}

func (s *Store) Remove(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.data[collection]
	if !ok {
		return nil
	}
	delete(coll, key)
	return nil
}

func (s *Store) All(_ context.Context, collection string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.data[collection]
	out := make(map[string][]byte, len(coll))
	for k, v := range coll {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

// Factory is installed into the registry under (storage, "memory"). Every
// named instance gets its own independent map.
func Factory(_ any, _ string, _ json.RawMessage) (any, error) {
	return New(), nil
}

// Register installs the memory factory into r.
func Register(r *registry.Registry) error {
	return r.Register(registry.CategoryStorage, "memory", Factory)
}
