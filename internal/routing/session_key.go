package routing

import "github.com/soyeahso/vyrtuous/internal/domain"

// SessionKey scopes a conversation window to the user who sent msg. The
// owner keeps one window across every chat and channel.
func SessionKey(msg domain.InboundMessage) string {
	return msg.From
}

// DestinationFor addresses the reply to msg.
func DestinationFor(msg domain.InboundMessage) domain.Destination {
	return domain.Destination{
		ChannelID: msg.ChannelID,
		ChatID:    msg.ChatID,
		ReplyToID: msg.ID,
	}
}
