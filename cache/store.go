// ABOUTME: Scratch and durable cache stores plus the commit and clear operations.
// ABOUTME: Durable state is one JSON document per test identifier, written atomically.

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Store maps cache keys to entries. Get never errors: absence is (nil, false).
// Set writes only into the store instance it is called on. Implementations
// are safe for concurrent use.
type Store interface {
	Get(key string) (*Entry, bool)
	Set(key string, entry *Entry)
	Keys() []string
}

// MemoryStore is the in-process scratch store. It lives for one run and is
// discarded unless committed.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore builds an empty scratch store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get returns the entry for key, or (nil, false).
func (s *MemoryStore) Get(key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Set stores entry under key.
func (s *MemoryStore) Set(key string, entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// Keys returns all keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// FileStore is the durable per-test store: the whole key→entry map persists
// as one JSON document at <dir>/<identifier>.json. Writes flush the full
// document through a temp file and rename so readers never observe a partial
// file.
type FileStore struct {
	mu         sync.Mutex
	path       string
	entries    map[string]*Entry
	loaded     bool
	persistErr error
}

// NewFileStore builds a durable store for the given test identifier under dir.
func NewFileStore(dir, identifier string) *FileStore {
	return &FileStore{
		path:    filepath.Join(dir, identifier+".json"),
		entries: make(map[string]*Entry),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		// Absence is an empty store.
		return
	}
	var entries map[string]*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt document is treated as a miss for every key; the next
		// commit rewrites it whole.
		return
	}
	s.entries = entries
}

// Get returns the entry for key, or (nil, false).
func (s *FileStore) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	entry, ok := s.entries[key]
	return entry, ok
}

// Set stores entry under key and flushes the document.
func (s *FileStore) Set(key string, entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	s.entries[key] = entry
	s.persistErr = s.persist()
}

// Keys returns all keys in sorted order.
func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Err returns the last persistence error, if any.
func (s *FileStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

// persist writes the whole document atomically. Caller holds the lock.
func (s *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("cache: creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encoding cache document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: writing cache document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("cache: replacing cache document: %w", err)
	}
	return nil
}

// EmitCache copies every scratch entry into the durable store. It is the only
// path by which speculative entries reach durable state, and callers invoke
// it solely on a passing outcome; a failed or aborted run simply drops its
// scratch store.
func EmitCache(scratch, durable Store) error {
	for _, key := range scratch.Keys() {
		entry, ok := scratch.Get(key)
		if !ok {
			continue
		}
		durable.Set(key, entry)
	}
	if fs, ok := durable.(*FileStore); ok {
		return fs.Err()
	}
	return nil
}

// PurgeAll unconditionally deletes every cache document under dir.
func PurgeAll(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("cache: listing cache dir: %w", err)
	}
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear removes cache documents older than maxAge, plus any document that
// fails to parse. A zero maxAge removes nothing by age.
func Clear(dir string, maxAge time.Duration) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("cache: listing cache dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var errs []error
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var entries map[string]*Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if maxAge <= 0 {
			continue
		}
		stale := true
		for _, entry := range entries {
			if time.UnixMilli(entry.Timestamp).After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
