package gateway

import "encoding/json"

// ProtocolVersion is the console wire protocol version.
const ProtocolVersion = 1

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// RPC methods and server events.
const (
	MethodConnect        = "connect"
	MethodHealth         = "health"
	MethodChannelsStatus = "channels.status"
	MethodSessionList    = "session.list"
	MethodChatSend       = "chat.send"
	MethodChatReact      = "chat.react"

	EventChallenge   = "connect.challenge"
	EventChatMessage = "chat.message"
	EventChatReact   = "chat.reaction"
)

// Frame is the envelope for every WebSocket message. Type discriminates
// requests, responses and events.
type Frame struct {
	Type string `json:"type"`

	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`

	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
}

// ErrorShape is the error body of a failed response.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectParams are sent by the client in the initial "connect" request.
type ConnectParams struct {
	Protocol int          `json:"protocol"`
	Client   ClientInfo   `json:"client"`
	Auth     *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK is the handshake response payload.
type HelloOK struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Methods  []string   `json:"methods"`
	Events   []string   `json:"events"`
}

// ServerInfo identifies the console server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ConnID  string `json:"connId"`
	ChatID  string `json:"chatId"`
}

// ChatSendParams carry one directive from the console.
type ChatSendParams struct {
	Message   string `json:"message"`
	ChatID    string `json:"chatId,omitempty"`
	ReplyToID string `json:"replyToId,omitempty"`
}

// ChatSendResult acknowledges an accepted directive.
type ChatSendResult struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

// ChatReactParams carry a reaction to a delivered message.
type ChatReactParams struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	ChatID    string `json:"chatId,omitempty"`
}

// ChatMessage is broadcast for every message the agent delivers.
type ChatMessage struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	Body      string `json:"body"`
	ReplyToID string `json:"replyToId,omitempty"`
	Timestamp int64  `json:"ts"`
}

// ChatReaction is broadcast when the agent reacts to a message.
type ChatReaction struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	Emoji     string `json:"emoji"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id, code, message string) Frame {
	ok := false
	return Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &ErrorShape{Code: code, Message: message},
	}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, nil
}
