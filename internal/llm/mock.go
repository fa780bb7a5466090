package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	mu       sync.Mutex
	requests []CompletionRequest
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response", FinishReason: FinishStop}, nil
}

// Requests returns every request seen so far.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}

// Script returns a CompleteFunc that replays steps in order and repeats the
// last one once exhausted.
func Script(steps ...func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) func(context.Context, CompletionRequest) (*CompletionResponse, error) {
	var (
		mu sync.Mutex
		n  int
	)
	return func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		mu.Lock()
		i := n
		if n < len(steps)-1 {
			n++
		}
		mu.Unlock()
		return steps[i](ctx, req)
	}
}

// Reply returns a script step that answers with text.
func Reply(text string) func(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return func(context.Context, CompletionRequest) (*CompletionResponse, error) {
		return &CompletionResponse{Content: text, FinishReason: FinishStop}, nil
	}
}

// Fail returns a script step that fails with err.
func Fail(err error) func(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return func(context.Context, CompletionRequest) (*CompletionResponse, error) {
		return nil, err
	}
}
