// Package localstore provides the synchronous key-value cache backing the
// data layer. It is the primary source of truth for responsiveness: every
// mutation lands here before any remote call is attempted.
//
// The store never surfaces I/O or serialization errors to its callers; a
// failed read degrades to the caller's zero value and a failed write degrades
// to a logged no-op.
package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Store is a mutex-guarded JSON key-value store, optionally persisted to a
// single file on every write.
type Store struct {
	mu   sync.RWMutex
	path string // empty means in-memory only
	data map[string]json.RawMessage
	log  zerolog.Logger
}

// Open loads the store from path, creating an empty store if the file does
// not exist or cannot be decoded.
func Open(path string, log zerolog.Logger) *Store {
	s := &Store{
		path: path,
		data: make(map[string]json.RawMessage),
		log:  log,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("Failed to create store directory")
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error().Err(err).Str("path", path).Msg("Failed to read local store, starting empty")
		}
		return s
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to decode local store, starting empty")
		s.data = make(map[string]json.RawMessage)
	}
	return s
}

// NewMemory creates a store with no file backing. Used in tests and as a
// scratch store.
func NewMemory(log zerolog.Logger) *Store {
	return &Store{
		data: make(map[string]json.RawMessage),
		log:  log,
	}
}

// Get decodes the value stored under key into out. It returns false when the
// key is absent or the stored value cannot be decoded into out; decode
// failures are logged, never propagated.
func (s *Store) Get(key string, out interface{}) bool {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to decode stored value")
		return false
	}
	return true
}

// Set stores v under key. Serialization failures are logged and the previous
// value is left untouched.
func (s *Store) Set(key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to encode value, keeping previous")
		return
	}
	s.mu.Lock()
	s.data[key] = raw
	s.persistLocked()
	s.mu.Unlock()
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.persistLocked()
	s.mu.Unlock()
}

// persistLocked writes the full store to its backing file, via a temp file
// and rename so a crash mid-write cannot corrupt the previous copy. Best
// effort: a failure is logged and the in-memory state remains authoritative.
func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode local store")
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		s.log.Error().Err(err).Str("path", tmp).Msg("Failed to write local store")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to replace local store")
	}
}
