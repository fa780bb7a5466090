// Package feedback records owner approval of posted corrections. Delivered
// correction messages are tracked in a Registry; reactions on them append
// to or prune a JSON Lines training log.
package feedback

import (
	"sync"

	"github.com/soyeahso/vyrtuous/internal/domain"
)

// Registry maps delivered message ids to the correction they carry. It is
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.FeedbackEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]domain.FeedbackEntry)}
}

// Track remembers entry under its delivered message id. Entries without an
// id are ignored.
func (r *Registry) Track(entry domain.FeedbackEntry) {
	if entry.DeliveredMessageID == "" {
		return
	}
	r.mu.Lock()
	r.entries[entry.DeliveredMessageID] = entry
	r.mu.Unlock()
}

// Lookup returns the entry for a delivered message id.
func (r *Registry) Lookup(id string) (domain.FeedbackEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Forget drops a tracked id.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len returns the number of tracked messages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
