package domain

import "context"

// ChannelCapabilities describes what a channel implementation supports.
type ChannelCapabilities struct {
	ChatTypes []ChatType `json:"chatTypes"`
	Reactions bool       `json:"reactions,omitempty"`
	Reply     bool       `json:"reply,omitempty"`
}

// ChannelStatus reports the runtime state of a channel.
type ChannelStatus struct {
	ChannelID string `json:"channelId"`
	Connected bool   `json:"connected"`
	Running   bool   `json:"running"`
	LastError string `json:"lastError,omitempty"`
}

// Channel is the interface that all chat surfaces must satisfy.
type Channel interface {
	// ID returns the channel identifier (e.g., "irc", "console").
	ID() string

	// Capabilities returns what this channel supports.
	Capabilities() ChannelCapabilities

	// Start connects the channel and begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully disconnects the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message and returns the id the surface
	// assigned to it. Reactions refer back to this id.
	Send(ctx context.Context, msg OutboundMessage) (string, error)

	// React attaches an emoji reaction to a previously delivered message.
	// Channels without reaction support return ErrUnsupported.
	React(ctx context.Context, chatID, messageID, emoji string) error

	// OnMessage registers a handler for inbound messages.
	OnMessage(handler func(msg InboundMessage))

	// OnReaction registers a handler for reactions added by users.
	OnReaction(handler func(ev ReactionEvent))
}
