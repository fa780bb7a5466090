package agent

import (
	"context"
	"strings"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// Sender delivers a message to a chat surface and returns its id.
type Sender interface {
	Send(ctx context.Context, msg domain.OutboundMessage) (string, error)
}

// Presenter delivers the latest message of a session.
type Presenter struct {
	sender Sender
	store  ConversationStore
	log    *logging.Logger
}

// NewPresenter creates a Presenter.
func NewPresenter(sender Sender, store ConversationStore, log *logging.Logger) *Presenter {
	return &Presenter{sender: sender, store: store, log: log.Sub("present")}
}

// Present sends the text of the session's last message to dest. It returns
// the delivered message id, or "" when there was nothing to send.
func (p *Presenter) Present(ctx context.Context, key string, dest domain.Destination) (string, error) {
	text, ok := LastText(p.store.Snapshot(key))
	if !ok || strings.TrimSpace(text) == "" {
		return "", nil
	}
	id, err := p.sender.Send(ctx, dest.Outbound(text))
	if err != nil {
		p.log.Warn().Err(err).Str("session", key).Str("chat", dest.ChatID).Msg("delivery failed")
		return "", err
	}
	return id, nil
}
