// Package tail watches a transcript file and feeds newly appended blocks
// of text to the agent during active hours.
package tail

import (
	"fmt"
	"sync"
)

// CursorStore persists the read offset of each tailed file.
type CursorStore interface {
	Load(path string) (int64, error)
	Save(path string, offset int64) error
}

// MemoryCursorStore keeps offsets for the life of the process.
type MemoryCursorStore struct {
	mu      sync.Mutex
	offsets map[string]int64
}

// NewMemoryCursorStore creates an empty in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{offsets: make(map[string]int64)}
}

// Load returns the offset saved for path, or 0.
func (m *MemoryCursorStore) Load(path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offsets[path], nil
}

// Save records the offset for path.
func (m *MemoryCursorStore) Save(path string, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets[path] = offset
	return nil
}

// IOError reports a failed file or cursor operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("tail %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
