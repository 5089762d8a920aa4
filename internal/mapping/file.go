package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hfi/authproxy/pkg/token"
)

// FileStore keeps the mapping table in memory and mirrors it to a
// single JSON document on disk. The whole table is rewritten on every
// create; the file is loaded once at construction.
type FileStore struct {
	mu   sync.RWMutex
	path string
	data map[string]*Mapping
}

// NewFileStore loads the table from path, or starts empty when the
// file is missing or unreadable. A corrupt file is treated as "no
// mappings yet" rather than a startup failure.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("mapping: storage path is empty")
	}

	s := &FileStore{
		path: path,
		data: make(map[string]*Mapping),
	}
	s.load()

	return s, nil
}

func (s *FileStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("could not read mapping table, starting empty")
		}
		return
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("mapping table is corrupt, starting empty")
		s.data = make(map[string]*Mapping)
	}
}

// Create mints an identifier, adds the mapping and rewrites the table
// file. Concurrent creates serialize on the store mutex so one durable
// write never silently drops another create's mapping.
func (s *FileStore) Create(def Definition) (*Mapping, error) {
	if err := def.normalize(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.freshID()
	if err != nil {
		return nil, err
	}

	m := def.build(id, time.Now())
	s.data[id] = m

	if err := s.persist(); err != nil {
		// The in-memory table keeps the mapping; only the durable copy
		// is behind. The caller must treat the create as failed.
		return nil, &PersistenceError{Err: err}
	}

	return m, nil
}

// freshID generates an identifier not present in the table. Callers
// must hold the store mutex.
func (s *FileStore) freshID() (string, error) {
	for {
		id, err := token.New(token.DefaultBytes)
		if err != nil {
			return "", fmt.Errorf("mapping: generating id: %w", err)
		}
		if _, exists := s.data[id]; !exists {
			return id, nil
		}
	}
}

// persist rewrites the whole table as one JSON document. The write
// goes to a temp file first and is moved into place, so readers of the
// file never observe a partial table.
func (s *FileStore) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "\t")
	if err != nil {
		return fmt.Errorf("marshal table: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace table file: %w", err)
	}

	return nil
}

// Lookup returns the mapping for id, if any.
func (s *FileStore) Lookup(id string) (*Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[id]
	return m, ok
}

// Len returns the number of mappings in the table.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close releases resources. The file store holds none.
func (s *FileStore) Close() error { return nil }

// Ping reports whether the directory holding the table file is still
// reachable, which is what the next durable write will need.
func (s *FileStore) Ping() error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}
