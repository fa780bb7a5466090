// Package tools holds the tool registry and the built-in tools the agent
// can call. Each tool pairs a typed argument decoder with an invoke
// function; no reflection-based coercion happens at call time.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// NotFoundError is returned when a tool name is not registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "Tool not found: " + e.Name
}

// BindingError is returned when arguments cannot be decoded into a tool's
// input type.
type BindingError struct {
	Tool string
	Err  error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// Call is a bound invocation, ready to run.
type Call func(ctx context.Context) (any, error)

// Handler is one registered tool.
type Handler interface {
	Name() string
	Description() string
	InputSchema() string

	// Bind decodes raw arguments into the tool's input and returns the
	// invocation. It fails with a *BindingError.
	Bind(args json.RawMessage) (Call, error)
}

// Outputter is implemented by structured results that expose a canonical
// output value.
type Outputter interface {
	Output() any
}

// Typed adapts a function over a concrete input type into a Handler.
type Typed[In any] struct {
	name        string
	description string
	schema      string
	invoke      func(ctx context.Context, in In) (any, error)
}

// New builds a typed tool handler.
func New[In any](name, description, schema string, invoke func(ctx context.Context, in In) (any, error)) *Typed[In] {
	return &Typed[In]{name: name, description: description, schema: schema, invoke: invoke}
}

func (t *Typed[In]) Name() string        { return t.name }
func (t *Typed[In]) Description() string { return t.description }
func (t *Typed[In]) InputSchema() string { return t.schema }

// Decode strictly decodes args into In. Unknown fields are rejected.
func (t *Typed[In]) Decode(args json.RawMessage) (In, error) {
	var in In
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, &BindingError{Tool: t.name, Err: err}
	}
	return in, nil
}

func (t *Typed[In]) Bind(args json.RawMessage) (Call, error) {
	in, err := t.Decode(args)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (any, error) {
		return t.invoke(ctx, in)
	}, nil
}

// Definition is a serializable tool description for model prompts.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Registry holds the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Handler
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Handler)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[h.Name()] = h
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.tools[name]
	return h, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns model-ready definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	names := r.Names()
	defs := make([]Definition, 0, len(names))
	for _, n := range names {
		h, _ := r.Get(n)
		schema := json.RawMessage(h.InputSchema())
		if !json.Valid(schema) {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		defs = append(defs, Definition{Name: n, Description: h.Description(), InputSchema: schema})
	}
	return defs
}

// Invoke binds args to the named tool, runs it and normalizes its result
// to JSON. Structured results contribute their Output; anything else is
// marshaled as is.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	h, ok := r.Get(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	call, err := h.Bind(args)
	if err != nil {
		return nil, err
	}

	out, err := call(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if s, ok := out.(Status); ok && s.ToolCall == "" {
		s.ToolCall = Echo(name, args)
		out = s
	}
	if o, ok := out.(Outputter); ok {
		out = o.Output()
	}
	return json.Marshal(out)
}
