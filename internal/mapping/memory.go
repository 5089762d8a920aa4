package mapping

import (
	"fmt"
	"sync"
	"time"

	"github.com/hfi/authproxy/pkg/token"
)

// MemoryStore is a map-only Store for ephemeral runs and tests. The
// durable write is a no-op that always succeeds, so mappings are lost
// on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Mapping
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*Mapping),
	}
}

// Create mints an identifier and adds the mapping to the table.
func (s *MemoryStore) Create(def Definition) (*Mapping, error) {
	if err := def.normalize(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		id, err := token.New(token.DefaultBytes)
		if err != nil {
			return nil, fmt.Errorf("mapping: generating id: %w", err)
		}
		if _, exists := s.data[id]; exists {
			continue
		}

		m := def.build(id, time.Now())
		s.data[id] = m
		return m, nil
	}
}

// Lookup returns the mapping for id, if any.
func (s *MemoryStore) Lookup(id string) (*Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[id]
	return m, ok
}

// Len returns the number of mappings in the table.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close releases resources. The memory store holds none.
func (s *MemoryStore) Close() error { return nil }
