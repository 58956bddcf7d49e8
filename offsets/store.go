package offsets

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrRegression is returned by Set when an offset would move backwards.
// Callers that detected truncation or rotation use Reset instead.
var ErrRegression = errors.New("offset regression")

// Entry is the progress recorded for one file path.
type Entry struct {
	Offset         uint64 `json:"offset"`
	FileID         uint64 `json:"file_id,omitempty"`
	InContinuation bool   `json:"in_continuation,omitempty"`
	Severity       string `json:"severity,omitempty"`
}

// Checkpointer persists store contents between runs.
type Checkpointer interface {
	Load(ctx context.Context) (map[string]Entry, error)
	Save(ctx context.Context, entries map[string]Entry) error
	Close() error
}

// Store maps resolved file paths to their read progress. It lives for the
// process lifetime unless a Checkpointer is used to load and flush it.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]Entry),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Get returns the entry for path and whether it has been seen.
func (s *Store) Get(path string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[path]
	return e, ok
}

// Offset returns the stored offset for path, 0 if unseen.
func (s *Store) Offset(path string) uint64 {
	e, _ := s.Get(path)
	return e.Offset
}

// Set records e for path. The offset must not decrease.
func (s *Store) Set(path string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[path]; ok && e.Offset < cur.Offset {
		return fmt.Errorf("%s: %d < %d: %w", path, e.Offset, cur.Offset, ErrRegression)
	}
	s.entries[path] = e
	return nil
}

// Reset rewinds path to offset 0 and clears its classification state.
func (s *Store) Reset(path string, fileID uint64) {
	s.mu.Lock()
	s.entries[path] = Entry{FileID: fileID}
	s.mu.Unlock()
}

// Forget drops path and its lock. The caller must not hold the path lock.
func (s *Store) Forget(path string) {
	s.mu.Lock()
	delete(s.entries, path)
	s.mu.Unlock()

	s.locksMu.Lock()
	delete(s.locks, path)
	s.locksMu.Unlock()
}

// FindByFileID returns a tracked path other than exclude whose entry carries
// fileID. A zero fileID never matches.
func (s *Store) FindByFileID(fileID uint64, exclude string) (string, Entry, bool) {
	if fileID == 0 {
		return "", Entry{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for path, e := range s.entries {
		if path != exclude && e.FileID == fileID {
			return path, e, true
		}
	}
	return "", Entry{}, false
}

// Paths returns the tracked paths in no particular order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for path := range s.entries {
		out = append(out, path)
	}
	return out
}

// Lock serialises work on one path across concurrent pollers and returns the
// matching unlock function.
func (s *Store) Lock(path string) func() {
	s.locksMu.Lock()
	m, ok := s.locks[path]
	if !ok {
		m = &sync.Mutex{}
		s.locks[path] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Len returns the number of tracked paths.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of all entries.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Restore replaces all entries, typically with a checkpoint loaded at startup.
func (s *Store) Restore(entries map[string]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry, len(entries))
	for k, v := range entries {
		s.entries[k] = v
	}
}

// Flush saves a snapshot through cp.
func (s *Store) Flush(ctx context.Context, cp Checkpointer) error {
	if cp == nil {
		return nil
	}
	return cp.Save(ctx, s.Snapshot())
}
