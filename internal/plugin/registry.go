package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// Registry manages plugin lifecycle.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string // insertion order for deterministic lifecycle
	started []string
	hooks   *hooks.Manager
	log     *logging.Logger
}

// NewRegistry creates a plugin registry.
func NewRegistry(hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		hooks:   hm,
		log:     log.Sub("plugins"),
	}
}

// Register adds a plugin to the registry without starting it.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.ID()]; exists {
		return fmt.Errorf("plugin already registered: %s", p.ID())
	}

	r.plugins[p.ID()] = p
	r.order = append(r.order, p.ID())
	r.log.Debug().Str("id", p.ID()).Msg("plugin registered")
	return nil
}

// StartAll starts every plugin in registration order. If one fails, the
// plugins already started are stopped again and the error is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		api := API{
			Hooks: r.hooks,
			Log:   r.log.Sub(id),
		}

		r.log.Info().Str("id", id).Msg("starting plugin")
		if err := r.plugins[id].Start(ctx, api); err != nil {
			r.stopStarted(context.WithoutCancel(ctx))
			return fmt.Errorf("start plugin %s: %w", id, err)
		}
		r.started = append(r.started, id)
	}
	return nil
}

// StopAll stops the started plugins in reverse order.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopStarted(ctx)
}

// stopStarted requires r.mu.
func (r *Registry) stopStarted(ctx context.Context) {
	for i := len(r.started) - 1; i >= 0; i-- {
		id := r.started[i]
		r.log.Info().Str("id", id).Msg("stopping plugin")
		if err := r.plugins[id].Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("id", id).Msg("plugin stop error")
		}
	}
	r.started = nil
}

// Get returns a plugin by ID, or nil if not found.
func (r *Registry) Get(id string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[id]
}

// List returns all registered plugin IDs in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
