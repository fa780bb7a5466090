package llm

import (
	"strings"

	"github.com/soyeahso/vyrtuous/internal/config"
)

// DefaultInstructions is the system text used when nothing is configured.
const DefaultInstructions = `You are vyrtuous, a careful reader who finds logical fallacies.
For every message you are given, decide whether it contains a fallacy. When it
does, name the fallacy, quote the offending passage, and propose a corrected
version of the argument. When a tool would help you act, call it.`

// defaultEndpoints holds provider -> requestType -> URL. "{model}" is
// replaced by the model id.
var defaultEndpoints = map[string]map[string]string{
	"gemini": {
		"generateContent":       "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
		"streamGenerateContent": "https://generativelanguage.googleapis.com/v1beta/models/{model}:streamGenerateContent?alt=sse",
	},
	"ollama": {
		"chat": "http://localhost:11434/api/chat",
	},
}

// defaultRequestTypes is used when a request does not name one.
var defaultRequestTypes = map[string]string{
	"gemini": "generateContent",
	"ollama": "chat",
}

// Catalog resolves per-provider endpoints and instructions.
type Catalog struct {
	endpoints    map[string]map[string]string
	instructions map[string]map[string]string
}

// NewCatalog builds a Catalog from the model config. Nil maps are fine.
func NewCatalog(cfg config.ModelConfig) *Catalog {
	return &Catalog{
		endpoints:    cfg.Endpoints,
		instructions: cfg.Instructions,
	}
}

// DefaultRequestType returns the request type a provider uses by default.
func DefaultRequestType(provider string) string {
	return defaultRequestTypes[provider]
}

// ResolveEndpoint returns the URL for provider, surface and requestType.
// Lookup order: "surface/requestType" override, requestType override,
// provider-wide "" override, built-in default. Returns "" when unknown.
func (c *Catalog) ResolveEndpoint(provider, surface, requestType string) string {
	if requestType == "" {
		requestType = DefaultRequestType(provider)
	}
	if overrides, ok := c.endpoints[provider]; ok {
		if surface != "" {
			if u := overrides[surface+"/"+requestType]; u != "" {
				return u
			}
		}
		if u := overrides[requestType]; u != "" {
			return u
		}
		if u := overrides[""]; u != "" {
			return u
		}
	}
	return defaultEndpoints[provider][requestType]
}

// ResolveInstructions returns the system text for provider and surface.
// Lookup order: exact surface, "*", DefaultInstructions.
func (c *Catalog) ResolveInstructions(provider, surface string) string {
	if byProvider, ok := c.instructions[provider]; ok {
		if s := strings.TrimSpace(byProvider[surface]); s != "" {
			return s
		}
		if s := strings.TrimSpace(byProvider["*"]); s != "" {
			return s
		}
	}
	return DefaultInstructions
}

// expandModel substitutes the model id into an endpoint template.
func expandModel(endpoint, model string) string {
	return strings.ReplaceAll(endpoint, "{model}", model)
}
