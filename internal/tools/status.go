package tools

import (
	"bytes"
	"encoding/json"
)

// Status is the structured result a tool returns: a human-readable message,
// whether the operation succeeded, and the call it answers.
type Status struct {
	Message  string `json:"message"`
	Success  bool   `json:"success"`
	ToolCall string `json:"toolCall"`
}

// Output implements Outputter.
func (s Status) Output() any { return s }

// Succeeded builds a successful status.
func Succeeded(msg string) Status { return Status{Message: msg, Success: true} }

// Failed builds a failed status.
func Failed(msg string) Status { return Status{Message: msg} }

// Echo renders a call the way the model wrote it, for the conversation log.
func Echo(name string, args json.RawMessage) string {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	b, err := json.Marshal(struct {
		Tool      string          `json:"tool"`
		Arguments json.RawMessage `json:"arguments"`
	}{name, args})
	if err != nil {
		return `{"tool":"` + name + `"}`
	}
	return string(b)
}
