package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/vyrtuous/internal/llm"
	"github.com/soyeahso/vyrtuous/internal/tools"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Instructions string
	Surface      string
	Tools        []llm.ToolDefinition
	Now          time.Time
}

// BuildSystemPrompt constructs the system instructions sent to the model.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(cfg.Instructions))
	b.WriteString("\n\n")

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))
	if cfg.Surface != "" {
		fmt.Fprintf(&b, "Channel: %s\n", cfg.Surface)
	}

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("Call a tool with a native function call, or by writing a fenced code block tagged `json`:\n\n")
		b.WriteString("```json\n{\"tool\": \"tool_name\", \"arguments\": {\"param\": \"value\"}}\n```\n\n")
		b.WriteString("Each block must contain both \"tool\" and \"arguments\". Use the channelId, chatId and messageId given with the request when a tool needs a destination.\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if len(t.InputSchema) > 0 {
				fmt.Fprintf(&b, "Input schema: %s\n", compactJSON(t.InputSchema))
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ToolDefinitions converts registry definitions for a model request.
func ToolDefinitions(defs []tools.Definition) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = llm.ToolDefinition{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
	}
	return out
}
