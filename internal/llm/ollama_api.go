package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OllamaAPIClient is a direct HTTP client for the Ollama chat API.
type OllamaAPIClient struct {
	baseURL     string
	model       string
	client      *http.Client
	transcripts *transcriptCache[ollamaMessage]
}

// NewOllamaAPIClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434".
func NewOllamaAPIClient(baseURL, model string) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaAPIClient{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		client:      &http.Client{Timeout: 10 * time.Minute},
		transcripts: newTranscriptCache[ollamaMessage](),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (o *OllamaAPIClient) WithHTTPClient(c *http.Client) *OllamaAPIClient {
	o.client = c
	return o
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string {
	return "ollama"
}

// Complete sends a chat request. With req.Stream set it reads the NDJSON
// stream and aggregates the chunks.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.model
	}
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = o.baseURL + "/api/chat"
	}

	var messages []ollamaMessage
	if req.Instructions != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.Instructions})
	}
	history := o.transcripts.Get(req.PreviousResponseID)
	messages = append(messages, history...)
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	body := ollamaChatRequest{Model: model, Messages: messages, Stream: req.Stream}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parseJSONSchema(t.InputSchema),
			},
		})
	}

	resp, err := postJSON(ctx, o.client, o.Name(), endpoint, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		content   strings.Builder
		toolCalls []ollamaToolCall
		final     ollamaChatResponse
	)
	scanner := newServerSentEventScanner(resp.Body)
	for scanner.Scan() {
		var chunk ollamaChatResponse
		if err := json.Unmarshal([]byte(scanner.Text()), &chunk); err != nil {
			if !req.Stream {
				return nil, &ProviderError{Provider: o.Name(), Message: "failed to parse response: " + err.Error()}
			}
			continue
		}
		if chunk.Error != "" {
			return nil, &ProviderError{Provider: o.Name(), Message: chunk.Error}
		}
		content.WriteString(chunk.Message.Content)
		toolCalls = append(toolCalls, chunk.Message.ToolCalls...)
		if chunk.Done {
			final = chunk
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &CompletionResponse{
		Content:      content.String(),
		FinishReason: ollamaFinishReason(final.DoneReason),
		ResponseID:   uuid.New().String(),
		Usage:        Usage{InputTokens: final.PromptEvalCount, OutputTokens: final.EvalCount},
		Model:        model,
		Duration:     time.Since(start),
	}
	for _, tc := range toolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil || tc.Function.Arguments == nil {
			args = json.RawMessage(`{}`)
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}

	turns := append(history, ollamaMessage{Role: "user", Content: req.Prompt},
		ollamaMessage{Role: "assistant", Content: out.Content, ToolCalls: toolCalls})
	o.transcripts.Put(out.ResponseID, turns)
	return out, nil
}

// ollamaFinishReason maps Ollama's done_reason onto the shared constants.
func ollamaFinishReason(reason string) string {
	switch reason {
	case "", "stop":
		return FinishStop
	case "length":
		return FinishMaxTokens
	default:
		return strings.ToUpper(reason)
	}
}

// API structures

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}
