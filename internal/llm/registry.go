package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// ProviderError is returned when a model provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages provider clients and resolves provider names or model
// aliases to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered model provider")
}

// Alias maps a model name to a provider.
// e.g. Alias("llama3", "ollama") means "llama3" resolves to the "ollama" provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Get returns the client registered under an exact provider name.
func (r *Registry) Get(provider string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[provider]
	return c, ok
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Direct provider name match
	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	// Alias lookup
	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	// Fallback
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no model provider for %q", model)
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers the configured provider and every fallback.
// The primary provider becomes the registry fallback.
func NewRegistryFromConfig(cfg config.ModelConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	names := append([]string{cfg.Provider}, cfg.Fallbacks...)
	for _, name := range names {
		if _, exists := reg.clients[name]; exists || name == "" {
			continue
		}
		entry := cfg.Providers[name]
		model := entry.Model
		if model == "" && name == cfg.Provider {
			model = cfg.Name
		}

		switch name {
		case "gemini":
			key := entry.APIKey
			if key == "" {
				key = cfg.APIKey
			}
			if key == "" {
				reg.log.Warn().Str("provider", name).Msg("no API key, provider skipped")
				continue
			}
			if model == "" {
				model = "gemini-2.5-flash"
			}
			reg.Register(name, NewGeminiAPIClient(key, model))
			reg.Alias(model, name)

		case "ollama":
			if model == "" {
				model = "llama3"
			}
			reg.Register(name, NewOllamaAPIClient(entry.BaseURL, model))
			reg.Alias(model, name)

		default:
			reg.log.Warn().Str("provider", name).Msg("unknown provider, skipped")
		}
	}

	if _, ok := reg.clients[cfg.Provider]; ok {
		reg.SetFallback(cfg.Provider)
	}
	return reg
}
