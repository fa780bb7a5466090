package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/version"
)

// maxTranscripts bounds how many continuation chains a provider remembers.
const maxTranscripts = 256

// serverSentEventScanner reads the data payloads of a Server-Sent Events
// stream. Lines without a "data:" prefix are passed through as-is so NDJSON
// bodies can use the same reader.
type serverSentEventScanner struct {
	scanner *bufio.Scanner
	data    string
}

func newServerSentEventScanner(r io.Reader) *serverSentEventScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &serverSentEventScanner{scanner: s}
}

// Scan advances to the next non-empty payload.
func (s *serverSentEventScanner) Scan() bool {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			line = strings.TrimSpace(after)
		}
		if line == "" || line == "[DONE]" {
			continue
		}
		s.data = line
		return true
	}
	return false
}

// Text returns the last scanned payload.
func (s *serverSentEventScanner) Text() string {
	return s.data
}

// Err returns the first non-EOF read error.
func (s *serverSentEventScanner) Err() error {
	return s.scanner.Err()
}

// parseJSONSchema converts a raw JSON schema to a map.
func parseJSONSchema(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{"type": "object"}
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return map[string]any{"type": "object"}
	}
	return schema
}

// postJSON sends body to endpoint and returns the open response. Non-2xx
// responses are drained and turned into a *ProviderError.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers map[string]string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Message: "request failed: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Provider: provider, Code: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// transcriptCache remembers the turns behind each response id so a
// continuation can be replayed to providers without server-side state.
type transcriptCache[T any] struct {
	mu    sync.Mutex
	order []string
	items map[string][]T
}

func newTranscriptCache[T any]() *transcriptCache[T] {
	return &transcriptCache[T]{items: make(map[string][]T)}
}

// Get returns a copy of the turns stored under id.
func (c *transcriptCache[T]) Get(id string) []T {
	if id == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items[id]...)
}

// Put stores turns under id, evicting the oldest chain when full.
func (c *transcriptCache[T]) Put(id string, turns []T) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = turns
	for len(c.order) > maxTranscripts {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
}
