// Package rpc implements the JSON-RPC 2.0 envelope the agent uses to call
// tools, and the in-process gateway that serves it.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/soyeahso/vyrtuous/internal/domain"
)

// Version is the JSON-RPC protocol version string.
const Version = "2.0"

// ProtocolVersion is the tool protocol revision reported by initialize.
const ProtocolVersion = "2024-11-05"

// Methods served by the gateway.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// Request is a JSON-RPC request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// InitializeParams opens a session.
type InitializeParams struct {
	Session    string      `json:"session,omitempty"`
	ClientInfo *ServerInfo `json:"clientInfo,omitempty"`
}

// InitializeResult answers initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// ServerInfo names one side of the connection.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CallParams are the params of tools/call.
type CallParams struct {
	Session   string          `json:"session,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CallResult is the normalized result of tools/call.
type CallResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ToolCall string `json:"toolCall"`
}

// NewInitializeRequest builds the handshake request for a session.
func NewInitializeRequest(session string) ([]byte, error) {
	return newRequest(MethodInitialize, InitializeParams{Session: session})
}

// NewCallRequest wraps a pending call in a tools/call envelope.
func NewCallRequest(session string, call domain.PendingToolCall) ([]byte, error) {
	return newRequest(MethodToolsCall, CallParams{Session: session, Name: call.Name, Arguments: call.Arguments})
}

func newRequest(method string, params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Request{JSONRPC: Version, ID: uuid.NewString(), Method: method, Params: raw})
}

// ErrEmptyResponse is returned for a reply with no body or no result.
var ErrEmptyResponse = errors.New("empty tool response")

// DecodeResponse returns the result member of a reply, or its error.
func DecodeResponse(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyResponse
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("malformed tool response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if len(resp.Result) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Result, nil
}

// DecodeCallResult extracts the normalized tool outcome from a reply.
func DecodeCallResult(raw []byte) (domain.ToolInvocationResult, error) {
	result, err := DecodeResponse(raw)
	if err != nil {
		return domain.ToolInvocationResult{}, err
	}
	var res CallResult
	if err := json.Unmarshal(result, &res); err != nil {
		return domain.ToolInvocationResult{}, fmt.Errorf("malformed tool result: %w", err)
	}
	return domain.ToolInvocationResult{Success: res.Success, Message: res.Message, EchoedCall: res.ToolCall}, nil
}
