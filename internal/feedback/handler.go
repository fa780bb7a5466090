package feedback

import (
	"context"
	"strings"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// Handler applies owner reactions on tracked corrections to the log.
type Handler struct {
	registry *Registry
	log      *Log
	hooks    *hooks.Manager
	logger   *logging.Logger
}

// NewHandler creates a reaction handler.
func NewHandler(registry *Registry, log *Log, hm *hooks.Manager, logger *logging.Logger) *Handler {
	return &Handler{registry: registry, log: log, hooks: hm, logger: logger.Sub("feedback")}
}

// HandleReaction approves or rejects the correction carried by the reacted
// message. Other emoji and untracked messages are ignored. Log failures are
// logged and never returned.
func (h *Handler) HandleReaction(ctx context.Context, ev domain.ReactionEvent) {
	emoji := normalizeEmoji(ev.Emoji)
	if emoji != domain.ReactionApprove && emoji != domain.ReactionReject {
		return
	}
	entry, ok := h.registry.Lookup(ev.MessageID)
	if !ok {
		h.logger.Debug().Str("message", ev.MessageID).Msg("reaction on untracked message")
		return
	}

	data := map[string]any{
		"channel": ev.ChannelID,
		"chat":    ev.ChatID,
		"message": ev.MessageID,
		"user":    ev.UserID,
	}

	if emoji == domain.ReactionApprove {
		if err := h.log.Approve(entry); err != nil {
			h.logger.Error().Err(err).Str("message", ev.MessageID).Msg("approve failed")
			return
		}
		h.logger.Info().Str("message", ev.MessageID).Msg("correction approved")
		h.hooks.Emit(ctx, hooks.EventFeedbackApproved, data)
		return
	}

	removed, err := h.log.Reject(entry)
	if err != nil {
		h.logger.Error().Err(err).Str("message", ev.MessageID).Msg("reject failed")
		return
	}
	data["removed"] = removed
	h.logger.Info().Str("message", ev.MessageID).Int("removed", removed).Msg("correction rejected")
	h.hooks.Emit(ctx, hooks.EventFeedbackRejected, data)
}

// normalizeEmoji drops the emoji presentation selector some clients add.
func normalizeEmoji(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), "\ufe0f")
}
