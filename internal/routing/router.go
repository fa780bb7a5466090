// Package routing connects chat channels to the agent driver and the
// feedback handler.
package routing

import (
	"context"
	"strings"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/agent"
	"github.com/soyeahso/vyrtuous/internal/channel"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// Runner runs one directive.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (agent.Result, error)
}

// ReactionHandler consumes reactions on delivered messages.
type ReactionHandler interface {
	HandleReaction(ctx context.Context, ev domain.ReactionEvent)
}

// Drop reasons reported by Accept.
const (
	DropBot          = "bot"
	DropNotOwner     = "not_owner"
	DropCommand      = "command"
	DropNotAddressed = "not_addressed"
)

// Config selects which inbound messages become directives.
type Config struct {
	Owner         string
	CommandPrefix string
}

// Router routes inbound messages to the runner and reactions to the
// feedback handler. Runs for one session key never overlap.
type Router struct {
	cfg       Config
	channels  *channel.Registry
	runner    Runner
	reactions ReactionHandler
	hooks     *hooks.Manager
	log       *logging.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
	wg    sync.WaitGroup
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewRouter creates a message router.
func NewRouter(cfg Config, channels *channel.Registry, runner Runner, reactions ReactionHandler, hm *hooks.Manager, log *logging.Logger) *Router {
	return &Router{
		cfg:       cfg,
		channels:  channels,
		runner:    runner,
		reactions: reactions,
		hooks:     hm,
		log:       log.Sub("router"),
		locks:     make(map[string]*keyLock),
	}
}

// Accept reports whether msg is a directive for the agent, and the drop
// reason when it is not.
func (r *Router) Accept(msg domain.InboundMessage) (bool, string) {
	switch {
	case msg.FromBot:
		return false, DropBot
	case r.cfg.Owner == "" || msg.From != r.cfg.Owner:
		return false, DropNotOwner
	case r.cfg.CommandPrefix != "" && strings.HasPrefix(strings.TrimSpace(msg.Body), r.cfg.CommandPrefix):
		return false, DropCommand
	case !msg.Addressed:
		return false, DropNotAddressed
	}
	return true, ""
}

// HandleInbound filters msg and, if it is a directive, runs it through the
// agent under its session key.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	if ok, reason := r.Accept(msg); !ok {
		r.log.Trace().
			Str("channel", msg.ChannelID).
			Str("from", msg.From).
			Str("reason", reason).
			Msg("dropping inbound message")
		return
	}

	key := SessionKey(msg)
	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("chat", msg.ChatID).
		Str("session", key).
		Msg("routing directive")
	r.hooks.Emit(ctx, hooks.EventMessageReceived, map[string]any{
		"channel": msg.ChannelID,
		"chat":    msg.ChatID,
		"message": msg.ID,
		"session": key,
	})

	res, err := r.Run(ctx, agent.Request{
		Principal:   msg.From,
		SessionKey:  key,
		Destination: DestinationFor(msg),
		Directive:   msg.Body,
	})
	if err != nil {
		r.log.Error().Err(err).Str("session", key).Msg("agent run failed")
		return
	}
	r.log.Info().
		Str("session", key).
		Int("turns", res.Turns).
		Int("toolCalls", res.ToolCalls).
		Str("delivered", res.Delivered).
		Msg("directive handled")
}

// Run runs req once every earlier run for the same session key has
// finished. The tail trigger uses it too, so its runs serialize with chat
// runs.
func (r *Router) Run(ctx context.Context, req agent.Request) (agent.Result, error) {
	unlock := r.lock(req.SessionKey)
	defer unlock()
	return r.runner.Run(ctx, req)
}

func (r *Router) lock(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// HandleReaction forwards owner reactions to the feedback handler.
func (r *Router) HandleReaction(ctx context.Context, ev domain.ReactionEvent) {
	if r.reactions == nil || r.cfg.Owner == "" || ev.UserID != r.cfg.Owner {
		return
	}
	r.reactions.HandleReaction(ctx, ev)
}

// Wire registers the router on every channel. Messages and reactions are
// handled on their own goroutines so channel read loops never block.
func (r *Router) Wire(ctx context.Context) {
	r.channels.OnMessage(func(msg domain.InboundMessage) {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.HandleInbound(ctx, msg)
		}()
	})
	r.channels.OnReaction(func(ev domain.ReactionEvent) {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.HandleReaction(ctx, ev)
		}()
	})
	for _, id := range r.channels.List() {
		r.log.Debug().Str("channel", id).Msg("wired channel")
	}
}

// Wait blocks until every handler started by Wire has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}
