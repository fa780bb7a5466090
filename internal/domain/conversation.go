package domain

import (
	"encoding/json"
	"time"
)

// MessageKind tags a conversation message.
type MessageKind string

const (
	KindDirective     MessageKind = "directive"
	KindAssistantText MessageKind = "assistant"
	KindToolResult    MessageKind = "tool"
)

// Message is one entry in a session's conversation window. Text is always
// populated; Payload optionally carries the structured form.
type Message struct {
	Kind      MessageKind     `json:"kind"`
	Text      string          `json:"text"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewDirective builds a directive message.
func NewDirective(text string) Message {
	return Message{Kind: KindDirective, Text: text, Timestamp: time.Now()}
}

// NewAssistantText builds an assistant text message.
func NewAssistantText(text string) Message {
	return Message{Kind: KindAssistantText, Text: text, Timestamp: time.Now()}
}

// NewToolResult builds a tool result message carrying the full result.
func NewToolResult(r ToolInvocationResult) Message {
	payload, _ := json.Marshal(r)
	return Message{Kind: KindToolResult, Text: r.Message, Payload: payload, Timestamp: time.Now()}
}

// Label is the upper-case role tag used when rendering context for a model.
func (k MessageKind) Label() string {
	switch k {
	case KindDirective:
		return "USER"
	case KindAssistantText:
		return "ASSISTANT"
	case KindToolResult:
		return "TOOL"
	default:
		return "UNKNOWN"
	}
}

// PendingToolCall is a parsed, not yet executed tool request.
type PendingToolCall struct {
	Name      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolInvocationResult is the normalized outcome of one tool dispatch.
type ToolInvocationResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	EchoedCall string `json:"toolCall"`
}

// FeedbackEntry pairs a delivered correction message with its texts.
type FeedbackEntry struct {
	DeliveredMessageID string `json:"deliveredMessageId"`
	Original           string `json:"original"`
	Correction         string `json:"correction"`
}
