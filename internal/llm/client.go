// Package llm defines the model client interface and the HTTP providers
// behind it.
//
// A request carries a rendered prompt, the system instructions, and an
// optional continuation id from the previous response. Providers that have
// no server-side continuation replay the earlier turns they produced.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Finish reasons reported by providers.
const (
	FinishStop      = "STOP"
	FinishMaxTokens = "MAX_TOKENS"
	FinishToolCalls = "TOOL_CALLS"
	// FinishMalformed marks a native tool call the provider could not
	// produce. It is never worth retrying.
	FinishMalformed = "MALFORMED_FUNCTION_CALL"
)

// IsMalformed reports whether a finish reason means the provider emitted a
// broken tool call.
func IsMalformed(reason string) bool {
	return reason == FinishMalformed
}

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"` // JSON Schema object
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model              string           `json:"model,omitempty"` // overrides the provider default
	Instructions       string           `json:"instructions,omitempty"`
	Prompt             string           `json:"prompt"`
	PreviousResponseID string           `json:"previousResponseId,omitempty"`
	RequestType        string           `json:"requestType,omitempty"`
	Endpoint           string           `json:"endpoint,omitempty"` // full URL; empty uses the provider default
	Surface            string           `json:"surface,omitempty"`  // chat surface the request originates from
	Stream             bool             `json:"stream,omitempty"`
	Tools              []ToolDefinition `json:"tools,omitempty"`
}

// CompletionResponse is the aggregated result of a completion.
type CompletionResponse struct {
	Content      string        `json:"content"`
	ToolCalls    []ToolCall    `json:"toolCalls,omitempty"`
	FinishReason string        `json:"finishReason,omitempty"`
	ResponseID   string        `json:"responseId,omitempty"`
	Usage        Usage         `json:"usage"`
	Model        string        `json:"model,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// ToolCall is a native request from the model to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all model providers implement.
type Client interface {
	// Complete sends a request and returns the full response. Streaming
	// providers aggregate chunks before returning.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g. "gemini", "ollama").
	Name() string
}
