// Package memory holds the taught prompt -> response mapping and its durable
// backing. Keys are expected to be normalized by the caller.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hession/teachmate/internal/logger"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrCorrupt marks a snapshot that exists but cannot be decoded
var ErrCorrupt = errors.New("memory snapshot is corrupt")

// Store memory storage interface.
// Implementations are safe for concurrent use and keep insertion order:
// overwriting a key does not move it.
type Store interface {
	// Load reads durable state. Failures are logged and leave the store empty.
	Load() error
	// Save writes a full snapshot of the mapping.
	Save() error

	Get(key string) (string, bool, error)
	// Put upserts and persists immediately. The in-memory value is kept
	// even when persisting fails.
	Put(key, response string) error
	Entries() ([]Entry, error)
	Len() int

	// Close flushes and releases resources
	Close() error
}

// Entry is one taught pair
type Entry struct {
	Prompt   string
	Response string
}

// Snapshot renders entries as a single JSON object in insertion order
type Snapshot []Entry

// MarshalJSON implements json.Marshaler
func (s Snapshot) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, string](len(s))
	for _, e := range s {
		om.Set(e.Prompt, e.Response)
	}
	return json.Marshal(om)
}

// Open creates the store for the configured backend and loads it.
// Load problems are non-fatal: the store starts empty.
func Open(backend, path string, log *logger.Logger) (Store, error) {
	var store Store
	switch backend {
	case "", "file":
		store = NewFileStore(path, log)
	case "sqlite":
		s, err := NewSQLiteStore(path, log)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown memory backend %q", backend)
	}

	// already logged by the backend
	_ = store.Load()

	return store, nil
}
