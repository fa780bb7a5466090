package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text  string `json:"text"`
	Times int    `json:"times,omitempty"`
}

func echoTool() Handler {
	return New("echo", "Echoes text.", `{"type":"object"}`, func(_ context.Context, in echoInput) (any, error) {
		return Succeeded(in.Text), nil
	})
}

func TestRegistryInvokeStatus(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())

	args := json.RawMessage(`{"text":"hi"}`)
	out, err := r.Invoke(context.Background(), "echo", args)
	require.NoError(t, err)

	var s Status
	require.NoError(t, json.Unmarshal(out, &s))
	assert.True(t, s.Success)
	assert.Equal(t, "hi", s.Message)
	assert.JSONEq(t, `{"tool":"echo","arguments":{"text":"hi"}}`, s.ToolCall)
}

func TestRegistryInvokeNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", json.RawMessage(`{}`))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
	assert.Equal(t, "Tool not found: missing", err.Error())
}

func TestRegistryInvokeBindingErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())

	for name, args := range map[string]string{
		"wrong type":    `{"text": 5}`,
		"unknown field": `{"text":"a","color":"red"}`,
		"not an object": `[1,2]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), "echo", json.RawMessage(args))
			var be *BindingError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "echo", be.Tool)
		})
	}
}

func TestRegistryInvokeGenericOutput(t *testing.T) {
	r := NewRegistry()
	r.Register(New("sum", "", `{}`, func(_ context.Context, in struct{ A, B int }) (any, error) {
		return map[string]int{"sum": in.A + in.B}, nil
	}))

	out, err := r.Invoke(context.Background(), "sum", json.RawMessage(`{"A":2,"B":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":5}`, string(out))
}

func TestRegistryInvokeToolError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register(New("fail", "", `{}`, func(_ context.Context, _ echoInput) (any, error) {
		return nil, boom
	}))

	_, err := r.Invoke(context.Background(), "fail", json.RawMessage(`{"text":"x"}`))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fail")
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(New("zeta", "z", `not json`, func(_ context.Context, _ echoInput) (any, error) { return nil, nil }))
	r.Register(echoTool())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
	assert.JSONEq(t, `{"type":"object"}`, string(defs[1].InputSchema))
	assert.Equal(t, []string{"echo", "zeta"}, r.Names())
}

func TestEcho(t *testing.T) {
	assert.JSONEq(t, `{"tool":"x","arguments":{}}`, Echo("x", nil))
	assert.Equal(t, `{"tool":"x"}`, Echo("x", json.RawMessage(`{broken`)))
}
