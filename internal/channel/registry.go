// Package channel manages the chat surfaces the agent talks through and
// routes outbound messages and reactions to them by channel id.
package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// UnknownChannelError is returned when a message names an unregistered
// channel.
type UnknownChannelError struct {
	ID string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown channel %q", e.ID)
}

// Registry manages a set of messaging channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	log      *logging.Logger
}

// NewRegistry creates a channel registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]domain.Channel),
		log:      log.Sub("channels"),
	}
}

// Register adds a channel to the registry.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
	r.log.Info().Str("channel", ch.ID()).Msg("channel registered")
}

// Get returns a channel by ID.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns all channel IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Send delivers msg through the channel it names and returns the
// delivered message id.
func (r *Registry) Send(ctx context.Context, msg domain.OutboundMessage) (string, error) {
	ch, ok := r.Get(msg.ChannelID)
	if !ok {
		return "", &UnknownChannelError{ID: msg.ChannelID}
	}
	id, err := ch.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", msg.ChannelID, err)
	}
	r.log.Debug().Str("channel", msg.ChannelID).Str("chat", msg.To).Str("id", id).Msg("message sent")
	return id, nil
}

// React adds emoji to a delivered message. Channels without reaction
// support return domain.ErrUnsupported.
func (r *Registry) React(ctx context.Context, channelID, chatID, messageID, emoji string) error {
	ch, ok := r.Get(channelID)
	if !ok {
		return &UnknownChannelError{ID: channelID}
	}
	if !ch.Capabilities().Reactions {
		return domain.ErrUnsupported
	}
	return ch.React(ctx, chatID, messageID, emoji)
}

// OnMessage registers handler on every channel registered so far.
func (r *Registry) OnMessage(handler func(msg domain.InboundMessage)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.channels {
		ch.OnMessage(handler)
	}
}

// OnReaction registers handler on every channel registered so far.
func (r *Registry) OnReaction(handler func(ev domain.ReactionEvent)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.channels {
		ch.OnReaction(handler)
	}
}

// Status returns the status of all registered channels sorted by id.
func (r *Registry) Status() []domain.ChannelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]domain.ChannelStatus, 0, len(r.channels))
	for _, ch := range r.channels {
		if sc, ok := ch.(interface{ Status() domain.ChannelStatus }); ok {
			statuses = append(statuses, sc.Status())
		} else {
			statuses = append(statuses, domain.ChannelStatus{
				ChannelID: ch.ID(),
				Running:   true,
			})
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ChannelID < statuses[j].ChannelID })
	return statuses
}

// StartAll starts all registered channels in background goroutines.
// Channel Start methods may block (e.g. IRC's Connect), so each is
// launched concurrently to avoid preventing subsequent initialization.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, ch := range r.channels {
		r.log.Info().Str("channel", id).Msg("starting channel")
		go func(id string, ch domain.Channel) {
			if err := ch.Start(ctx); err != nil {
				r.log.Error().Err(err).Str("channel", id).Msg("channel exited with error")
			}
		}(id, ch)
	}
	return nil
}

// StopAll stops all registered channels.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, ch := range r.channels {
		r.log.Info().Str("channel", id).Msg("stopping channel")
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", id).Msg("failed to stop channel")
		}
	}
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
