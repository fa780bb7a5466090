package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/vyrtuous/internal/llm"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// FailoverClient wraps a provider registry to try fallback providers on
// retryable failures.
type FailoverClient struct {
	registry  *llm.Registry
	catalog   *llm.Catalog
	primary   string
	fallbacks []string
	log       *logging.Logger
}

// NewFailoverClient creates a client that tries the primary provider first,
// then walks the fallbacks on retryable errors (401, 429, 5xx).
func NewFailoverClient(registry *llm.Registry, catalog *llm.Catalog, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		catalog:   catalog,
		primary:   primary,
		fallbacks: fallbacks,
		log:       log.Sub("failover"),
	}
}

// Name returns the primary provider name.
func (f *FailoverClient) Name() string { return f.primary }

// Complete tries the primary provider, falling back on retryable errors.
// Fallback providers use their own default model, request type and
// endpoint.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	providers := append([]string{f.primary}, f.fallbacks...)

	var lastErr error
	for i, provider := range providers {
		client, ok := f.registry.Get(provider)
		if !ok {
			f.log.Debug().Str("provider", provider).Msg("no client for provider, skipping")
			lastErr = fmt.Errorf("no model provider for %q", provider)
			continue
		}

		attempt := req
		if i > 0 {
			attempt.Model = ""
			attempt.RequestType = llm.DefaultRequestType(provider)
			attempt.PreviousResponseID = ""
			if f.catalog != nil {
				attempt.Endpoint = f.catalog.ResolveEndpoint(provider, req.Surface, attempt.RequestType)
			}
		}

		resp, err := client.Complete(ctx, attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if isRetryable(err) && ctx.Err() == nil {
			f.log.Warn().
				Str("provider", provider).
				Err(err).
				Msg("retryable error, trying next provider")
			continue
		}

		// Non-retryable error; don't try more providers
		return nil, err
	}

	return nil, lastErr
}

// isRetryable checks if the error suggests trying another provider.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403, 429, 500, 502, 503, 529:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}
