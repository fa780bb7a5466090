package domain

import (
	"errors"
	"time"
)

// ErrUnsupported is returned by channels for operations they cannot perform.
var ErrUnsupported = errors.New("operation not supported by channel")

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
)

// Reactions understood by the feedback loop.
const (
	ReactionApprove = "✅"
	ReactionReject  = "❌"
)

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	ChatID    string    `json:"chatId"`
	ChatType  ChatType  `json:"chatType"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	ReplyToID string    `json:"replyToId,omitempty"`

	// Addressed is set when the message mentions the bot or replies to one
	// of its messages. Direct messages are always addressed.
	Addressed bool `json:"addressed,omitempty"`
	// FromBot marks messages authored by a bot account, including our own echo.
	FromBot bool `json:"fromBot,omitempty"`
}

// OutboundMessage is a message to be sent via a channel.
type OutboundMessage struct {
	ChannelID string `json:"channelId"`
	To        string `json:"to"`
	Body      string `json:"body"`
	ReplyToID string `json:"replyToId,omitempty"`
}

// ReactionEvent is emitted when a user reacts to a delivered message.
type ReactionEvent struct {
	ChannelID string    `json:"channelId"`
	ChatID    string    `json:"chatId"`
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	Timestamp time.Time `json:"timestamp"`
}

// Destination addresses a conversation on a chat surface.
type Destination struct {
	ChannelID string `json:"channelId"`
	ChatID    string `json:"chatId"`
	ReplyToID string `json:"replyToId,omitempty"`
}

// Outbound builds a message for this destination.
func (d Destination) Outbound(body string) OutboundMessage {
	return OutboundMessage{ChannelID: d.ChannelID, To: d.ChatID, Body: body, ReplyToID: d.ReplyToID}
}
