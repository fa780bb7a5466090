package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		fmt.Fprint(w, `{"model":"llama3","message":{"role":"assistant","content":"hi there","tool_calls":[{"function":{"name":"send_message","arguments":{"text":"yo"}}}]},"done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":2}`)
	}))
	defer srv.Close()

	o := NewOllamaAPIClient(srv.URL+"/", "llama3").WithHTTPClient(srv.Client())
	resp, err := o.Complete(context.Background(), CompletionRequest{
		Instructions: "sys",
		Prompt:       "hello",
		Tools:        []ToolDefinition{{Name: "send_message"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, Usage{InputTokens: 4, OutputTokens: 2}, resp.Usage)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "send_message", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"text":"yo"}`, string(resp.ToolCalls[0].Arguments))

	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
}

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"par"},"done":false}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"tial"},"done":true,"done_reason":"length"}`)
	}))
	defer srv.Close()

	o := NewOllamaAPIClient(srv.URL, "m").WithHTTPClient(srv.Client())
	resp, err := o.Complete(context.Background(), CompletionRequest{Prompt: "x", Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "partial", resp.Content)
	assert.Equal(t, FinishMaxTokens, resp.FinishReason)
}

func TestOllamaContinuation(t *testing.T) {
	var last ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &last)
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	o := NewOllamaAPIClient(srv.URL, "m").WithHTTPClient(srv.Client())
	first, err := o.Complete(context.Background(), CompletionRequest{Prompt: "one"})
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), CompletionRequest{Prompt: "two", PreviousResponseID: first.ResponseID})
	require.NoError(t, err)

	require.Len(t, last.Messages, 3)
	assert.Equal(t, "one", last.Messages[0].Content)
	assert.Equal(t, "assistant", last.Messages[1].Role)
	assert.Equal(t, "two", last.Messages[2].Content)
}

func TestOllamaErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	o := NewOllamaAPIClient(srv.URL, "m").WithHTTPClient(srv.Client())
	_, err := o.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "model not found")
}

func TestOllamaFinishReason(t *testing.T) {
	assert.Equal(t, FinishStop, ollamaFinishReason(""))
	assert.Equal(t, FinishStop, ollamaFinishReason("stop"))
	assert.Equal(t, FinishMaxTokens, ollamaFinishReason("length"))
	assert.Equal(t, "LOAD", ollamaFinishReason("load"))
}
