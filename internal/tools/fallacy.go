package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// Messenger delivers messages and reactions to chat surfaces.
type Messenger interface {
	Send(ctx context.Context, msg domain.OutboundMessage) (string, error)
	React(ctx context.Context, channelID, chatID, messageID, emoji string) error
}

// Tracker remembers which delivered message carries which correction.
type Tracker interface {
	Track(entry domain.FeedbackEntry)
}

// FallacyCorrection is one detected fallacy and its suggested fix.
type FallacyCorrection struct {
	FallacyName string `json:"fallacyName,omitempty"`
	Fallacy     string `json:"fallacy"`
	Correction  string `json:"correction,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// CorrectFallacyInput is the argument shape of correct_fallacy.
type CorrectFallacyInput struct {
	ChannelID   string              `json:"channelId,omitempty"`
	ChatID      string              `json:"chatId,omitempty"`
	MessageID   string              `json:"messageId,omitempty"`
	Corrections []FallacyCorrection `json:"corrections"`
}

const correctFallacySchema = `{
  "type": "object",
  "properties": {
    "channelId": {"type": "string", "description": "Chat surface the directive came from."},
    "chatId": {"type": "string", "description": "Conversation to post the corrections in."},
    "messageId": {"type": "string", "description": "Message to reply to with the first correction."},
    "corrections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "fallacyName": {"type": "string", "description": "The latin name of the fallacy."},
          "fallacy": {"type": "string", "description": "The text which contains the fallacy."},
          "correction": {"type": "string", "description": "The suggested correction of the fallacy."},
          "timestamp": {"type": "string", "description": "The timestamp of the fallacy."}
        },
        "required": ["fallacy"]
      }
    }
  },
  "required": ["corrections"]
}`

// CorrectFallacy posts one message per correction, registers each for
// feedback and seeds the approve/reject reactions. A call without a
// destination uses the run destination from ctx, then fallback.
func CorrectFallacy(m Messenger, tracker Tracker, fallback domain.Destination, log *logging.Logger) Handler {
	log = log.Sub("correct_fallacy")
	return New("correct_fallacy",
		"Sends a message in the relevant channel if a fallacy is detected along with a correction.",
		correctFallacySchema,
		func(ctx context.Context, in CorrectFallacyInput) (any, error) {
			if len(in.Corrections) == 0 {
				return Failed("No fallacy/correction pairs provided"), nil
			}

			dest := domain.Destination{ChannelID: in.ChannelID, ChatID: in.ChatID, ReplyToID: in.MessageID}
			if dest.ChannelID == "" || dest.ChatID == "" {
				if run, ok := DestinationFrom(ctx); ok {
					dest = run
				} else {
					dest = fallback
				}
			}
			if dest.ChannelID == "" || dest.ChatID == "" {
				return Failed("No destination for corrections"), nil
			}

			sent := 0
			var lastErr error
			for i, fc := range in.Corrections {
				msg := dest.Outbound(formatCorrection(fc))
				if i > 0 {
					msg.ReplyToID = ""
				}
				id, err := m.Send(ctx, msg)
				if err != nil {
					lastErr = err
					log.Warn().Err(err).Str("chat", dest.ChatID).Msg("correction send failed")
					continue
				}
				sent++

				if tracker != nil && id != "" {
					tracker.Track(domain.FeedbackEntry{DeliveredMessageID: id, Original: fc.Fallacy, Correction: fc.Correction})
				}
				for _, emoji := range []string{domain.ReactionApprove, domain.ReactionReject} {
					if err := m.React(ctx, dest.ChannelID, dest.ChatID, id, emoji); err != nil && !errors.Is(err, domain.ErrUnsupported) {
						log.Debug().Err(err).Str("message", id).Msg("seed reaction failed")
					}
				}
			}

			if sent == 0 && lastErr != nil {
				return Failed("Failed to send corrections: " + lastErr.Error()), nil
			}
			return Succeeded(fmt.Sprintf("Sent %d fallacy/correction messages.", sent)), nil
		})
}

func formatCorrection(fc FallacyCorrection) string {
	var sb strings.Builder
	name := fc.FallacyName
	if name == "" {
		name = "Fallacy"
	}
	sb.WriteString(name)
	if fc.Timestamp != "" {
		sb.WriteString(" (" + fc.Timestamp + ")")
	}
	sb.WriteString("\nFallacy: " + fc.Fallacy)
	if fc.Correction != "" {
		sb.WriteString("\nCorrection: " + fc.Correction)
	}
	return sb.String()
}
