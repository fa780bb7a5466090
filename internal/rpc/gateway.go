package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/tools"
	"github.com/soyeahso/vyrtuous/internal/version"
)

// Invoker runs tools by name.
type Invoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
	Definitions() []tools.Definition
}

// Gateway serves JSON-RPC requests against a tool registry. Sessions must
// complete initialize before their tools/call requests are honored.
type Gateway struct {
	tools Invoker
	log   *logging.Logger

	mu       sync.RWMutex
	sessions map[string]struct{}
}

// NewGateway creates a gateway over the given tools.
func NewGateway(t Invoker, log *logging.Logger) *Gateway {
	return &Gateway{
		tools:    t,
		log:      log.Sub("rpc"),
		sessions: make(map[string]struct{}),
	}
}

// Initialized reports whether a session has completed the handshake.
func (g *Gateway) Initialized(session string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sessions[session]
	return ok
}

// Handle processes one raw request and returns the raw response. It
// returns nil only when the response itself cannot be encoded.
func (g *Gateway) Handle(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		g.log.Warn().Err(err).Msg("parse error")
		return g.encode(Response{JSONRPC: Version, Error: &RPCError{Code: CodeParseError, Message: "Parse error", Data: err.Error()}})
	}
	if req.Method == "" {
		return g.encode(Response{JSONRPC: Version, ID: req.ID, Error: &RPCError{Code: CodeInvalidRequest, Message: "method is required"}})
	}

	g.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("handling request")

	var result any
	switch req.Method {
	case MethodInitialize:
		result = g.initialize(req.Params)
	case MethodToolsList:
		result = map[string]any{"tools": g.tools.Definitions()}
	case MethodToolsCall:
		var p CallParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return g.encode(Response{JSONRPC: Version, ID: req.ID, Error: &RPCError{Code: CodeInvalidParams, Message: "invalid params", Data: err.Error()}})
		}
		result = g.call(ctx, p)
	default:
		return g.encode(Response{JSONRPC: Version, ID: req.ID, Error: &RPCError{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}})
	}

	body, err := json.Marshal(result)
	if err != nil {
		g.log.Error().Err(err).Str("method", req.Method).Msg("encoding result")
		return nil
	}
	return g.encode(Response{JSONRPC: Version, ID: req.ID, Result: body})
}

func (g *Gateway) initialize(params json.RawMessage) InitializeResult {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			g.log.Debug().Err(err).Msg("ignoring unreadable initialize params")
		}
	}

	g.mu.Lock()
	_, seen := g.sessions[p.Session]
	g.sessions[p.Session] = struct{}{}
	g.mu.Unlock()

	if !seen {
		g.log.Info().Str("session", p.Session).Msg("session initialized")
	}
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: version.Name, Version: version.Version},
		Capabilities:    map[string]any{"tools": map[string]any{}},
	}
}

func (g *Gateway) call(ctx context.Context, p CallParams) CallResult {
	echo := tools.Echo(p.Name, p.Arguments)
	if !g.Initialized(p.Session) {
		return CallResult{Message: failure(p.Name, "session not initialized"), ToolCall: echo}
	}

	out, err := g.tools.Invoke(ctx, p.Name, p.Arguments)
	if err != nil {
		g.log.Warn().Err(err).Str("tool", p.Name).Msg("tool call failed")
		return CallResult{Message: failure(p.Name, err.Error()), ToolCall: echo}
	}

	var st tools.Status
	if err := json.Unmarshal(out, &st); err != nil || st.Message == "" {
		return CallResult{Success: true, Message: success(p.Name, string(out)), ToolCall: echo}
	}
	if st.ToolCall == "" {
		st.ToolCall = echo
	}
	if !st.Success {
		return CallResult{Message: failure(p.Name, st.Message), ToolCall: st.ToolCall}
	}
	return CallResult{Success: true, Message: success(p.Name, st.Message), ToolCall: st.ToolCall}
}

func (g *Gateway) encode(resp Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		g.log.Error().Err(err).Msg("encoding response")
		return nil
	}
	return b
}

func success(name, msg string) string { return "[" + name + "] " + msg }

func failure(name, msg string) string { return "TOOL: [" + name + "] Error: " + msg }
