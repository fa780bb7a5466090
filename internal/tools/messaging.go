package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/vyrtuous/internal/domain"
)

// StatusLister reports the state of the configured chat surfaces.
type StatusLister interface {
	Status() []domain.ChannelStatus
}

// SendMessageInput is the argument shape of send_message.
type SendMessageInput struct {
	ChannelID string `json:"channelId"`
	ChatID    string `json:"chatId"`
	Text      string `json:"text"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

const sendMessageSchema = `{
  "type": "object",
  "properties": {
    "channelId": {"type": "string"},
    "chatId": {"type": "string"},
    "text": {"type": "string"},
    "replyTo": {"type": "string"}
  },
  "required": ["channelId", "chatId", "text"]
}`

// SendMessage posts free text to a conversation.
func SendMessage(m Messenger) Handler {
	return New("send_message", "Sends a plain text message to a chat.", sendMessageSchema,
		func(ctx context.Context, in SendMessageInput) (any, error) {
			if strings.TrimSpace(in.Text) == "" {
				return Failed("text is required"), nil
			}
			id, err := m.Send(ctx, domain.OutboundMessage{ChannelID: in.ChannelID, To: in.ChatID, Body: in.Text, ReplyToID: in.ReplyTo})
			if err != nil {
				return Failed("send failed: " + err.Error()), nil
			}
			return Succeeded("Message sent with id " + id), nil
		})
}

// ListChannelsInput is the argument shape of list_channels.
type ListChannelsInput struct {
	Filter string `json:"filter"`
}

const listChannelsSchema = `{
  "type": "object",
  "properties": {
    "filter": {"type": "string", "description": "Channel id prefix, or * for all channels."}
  },
  "required": ["filter"]
}`

// ListChannels describes the chat surfaces the agent is connected to.
func ListChannels(l StatusLister) Handler {
	return New("list_channels", "Lists the chat surfaces and whether they are connected.", listChannelsSchema,
		func(ctx context.Context, in ListChannelsInput) (any, error) {
			var lines []string
			for _, s := range l.Status() {
				if in.Filter != "" && in.Filter != "*" && !strings.HasPrefix(s.ChannelID, in.Filter) {
					continue
				}
				line := fmt.Sprintf("%s connected=%t running=%t", s.ChannelID, s.Connected, s.Running)
				if s.LastError != "" {
					line += " error=" + s.LastError
				}
				lines = append(lines, line)
			}
			if len(lines) == 0 {
				return Succeeded("No channels configured."), nil
			}
			return Succeeded(strings.Join(lines, "\n")), nil
		})
}
