package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hession/teachmate/internal/logger"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FileStore keeps the mapping in memory and mirrors it to one
// human-readable JSON file, rewritten in full on every mutation.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	entries *orderedmap.OrderedMap[string, string]
	dirty   bool // last write to disk failed
	log     *logger.Logger
}

// NewFileStore creates an empty store backed by path. Call Load to read it.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	return &FileStore{
		path:    path,
		entries: orderedmap.New[string, string](),
		log:     log,
	}
}

// Path returns the snapshot file path
func (s *FileStore) Path() string {
	return s.path
}

// Load replaces the mapping with the snapshot on disk.
// A missing file means empty memory. An unreadable or corrupt file resets
// memory to empty; the error is logged and returned for inspection only.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.entries = orderedmap.New[string, string]()
		s.log.Info("%s does not exist, starting with empty memory", s.path)
		return nil
	}
	if err != nil {
		s.entries = orderedmap.New[string, string]()
		s.log.Error("failed to read memory file %s: %v", s.path, err)
		return fmt.Errorf("failed to read memory file: %w", err)
	}

	loaded := orderedmap.New[string, string]()
	if err := json.Unmarshal(data, loaded); err != nil {
		s.entries = orderedmap.New[string, string]()
		s.log.Error("failed to parse memory file %s, resetting memory: %v", s.path, err)
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	s.entries = loaded
	s.log.Info("memory loaded from %s: %d entries", s.path, loaded.Len())
	return nil
}

// Save writes the whole mapping to disk
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes to a temp file and renames it over the snapshot so a
// failed write never truncates the previous one.
func (s *FileStore) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		s.log.Error("failed to serialize memory: %v", err)
		return fmt.Errorf("failed to serialize memory: %w", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		s.dirty = true
		s.log.Error("failed to save memory to %s: %v", s.path, err)
		return err
	}
	s.dirty = false

	s.log.Debug("memory saved to %s: %d entries", s.path, s.entries.Len())
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write memory file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close memory file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod memory file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace memory file: %w", err)
	}
	return nil
}

// Get returns the stored response for an exact key
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries.Get(key)
	return v, ok, nil
}

// Put upserts key and saves the snapshot
func (s *FileStore) Put(key, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Set(key, response)
	return s.saveLocked()
}

// Entries returns a copy of the mapping in insertion order
func (s *FileStore) Entries() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Prompt: pair.Key, Response: pair.Value})
	}
	return out, nil
}

// Len returns the number of stored entries
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Len()
}

// Close retries the snapshot write if the last one failed
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked()
}
