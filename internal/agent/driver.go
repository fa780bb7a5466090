package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/tools"
)

// Request is one directive handed to the Driver.
type Request struct {
	Principal   string // user the directive comes from; only the owner is served
	SessionKey  string // scopes the conversation window
	Destination domain.Destination
	Directive   string
}

// Result summarizes a finished run.
type Result struct {
	Turns     int
	ToolCalls int
	Outcome   OutcomeKind
	Delivered string // id of the presented message
}

// DriverConfig tunes the Driver.
type DriverConfig struct {
	Owner    string
	AckText  string
	MaxTurns int
}

// Driver runs directives through the reason, execute and present steps.
type Driver struct {
	cfg        DriverConfig
	store      ConversationStore
	reasoner   *Reasoner
	supervisor *Supervisor
	executor   *Executor
	presenter  *Presenter
	sender     Sender
	hooks      *hooks.Manager
	log        *logging.Logger
}

// DriverDeps are the collaborators of a Driver.
type DriverDeps struct {
	Store      ConversationStore
	Reasoner   *Reasoner
	Supervisor *Supervisor
	Executor   *Executor
	Sender     Sender
	Hooks      *hooks.Manager
}

// NewDriver creates a Driver.
func NewDriver(cfg DriverConfig, deps DriverDeps, log *logging.Logger) *Driver {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}
	log = log.Sub("driver")
	return &Driver{
		cfg:        cfg,
		store:      deps.Store,
		reasoner:   deps.Reasoner,
		supervisor: deps.Supervisor,
		executor:   deps.Executor,
		presenter:  NewPresenter(deps.Sender, deps.Store, log),
		sender:     deps.Sender,
		hooks:      deps.Hooks,
		log:        log,
	}
}

// Owner returns the principal the driver serves.
func (d *Driver) Owner() string { return d.cfg.Owner }

// Run processes one directive. Requests from anyone but the owner and
// blank directives are no-ops. A run whose retries are exhausted still
// presents the diagnostic and then returns the error.
func (d *Driver) Run(ctx context.Context, req Request) (Result, error) {
	var res Result
	if req.Principal != d.cfg.Owner || d.cfg.Owner == "" {
		d.log.Debug().Str("principal", req.Principal).Msg("ignoring directive from non-owner")
		return res, nil
	}

	if d.cfg.AckText != "" {
		if _, err := d.sender.Send(ctx, req.Destination.Outbound(d.cfg.AckText)); err != nil {
			d.log.Warn().Err(err).Str("chat", req.Destination.ChatID).Msg("ack failed")
		}
	}

	if strings.TrimSpace(req.Directive) == "" {
		return res, nil
	}

	start := time.Now()
	key := req.SessionKey
	directive := FrameDirective(req.Directive, req.Destination)
	d.store.Append(key, domain.NewDirective(directive))
	d.hooks.Emit(ctx, hooks.EventRunStart, map[string]any{"session": key, "channel": req.Destination.ChannelID})

	ctx = tools.WithDestination(ctx, req.Destination)
	turn := Turn{SessionKey: key, Surface: req.Destination.ChannelID, Directive: directive}

	var runErr error
	for res.Turns < d.cfg.MaxTurns {
		res.Turns++
		out, err := d.supervisor.Run(ctx, key, func(actx context.Context) (Outcome, error) {
			return d.reasoner.Step(actx, turn)
		})
		if err != nil {
			runErr = err
			break
		}
		d.reasoner.Commit(key, out)
		res.Outcome = out.Kind

		n := d.executor.Execute(ctx, key, out)
		res.ToolCalls += n
		if out.Kind != OutcomeToolCalls || n == 0 {
			break
		}
	}

	id, err := d.presenter.Present(context.WithoutCancel(ctx), key, req.Destination)
	res.Delivered = id
	if runErr == nil && err != nil {
		runErr = fmt.Errorf("present: %w", err)
	}

	data := map[string]any{
		"session":   key,
		"turns":     res.Turns,
		"toolCalls": res.ToolCalls,
		"outcome":   res.Outcome.String(),
		"duration":  time.Since(start).String(),
	}
	if runErr != nil {
		data["error"] = runErr.Error()
		d.hooks.Emit(ctx, hooks.EventRunFailed, data)
		d.log.Error().Err(runErr).Str("session", key).Msg("run failed")
		return res, runErr
	}
	d.hooks.Emit(ctx, hooks.EventRunEnd, data)
	d.log.Info().
		Str("session", key).
		Int("turns", res.Turns).
		Int("toolCalls", res.ToolCalls).
		Dur("duration", time.Since(start)).
		Msg("run complete")
	return res, nil
}

// FrameDirective appends the destination identifiers a tool needs to
// answer in place.
func FrameDirective(text string, dest domain.Destination) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(text))
	fmt.Fprintf(&sb, "\n\n[channelId: %s, chatId: %s", dest.ChannelID, dest.ChatID)
	if dest.ReplyToID != "" {
		fmt.Fprintf(&sb, ", messageId: %s", dest.ReplyToID)
	}
	sb.WriteString("]")
	return sb.String()
}
