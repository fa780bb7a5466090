package tail

import (
	"context"
	"strings"
	"time"

	"github.com/soyeahso/vyrtuous/internal/agent"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

// SessionKey scopes the conversation of tail-triggered runs.
const SessionKey = "logtail"

// DirectivePrefix frames the blocks handed to the agent.
const DirectivePrefix = "The following is content to be parsed for a fallacy:"

// Runner runs one directive through the agent.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (agent.Result, error)
}

// TriggerConfig configures a Trigger.
type TriggerConfig struct {
	Interval    time.Duration
	Window      Window
	Principal   string // who the directive is attributed to
	Destination domain.Destination
}

// Trigger polls a Tailer on an interval and runs new blocks through the
// agent while the active-hours window is open.
type Trigger struct {
	cfg    TriggerConfig
	tailer *Tailer
	runner Runner
	hooks  *hooks.Manager
	log    *logging.Logger
	now    func() time.Time
}

// NewTrigger creates a Trigger. A non-positive interval polls every minute.
func NewTrigger(cfg TriggerConfig, tailer *Tailer, runner Runner, hm *hooks.Manager, log *logging.Logger) *Trigger {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Trigger{
		cfg:    cfg,
		tailer: tailer,
		runner: runner,
		hooks:  hm,
		log:    log.Sub("tail.trigger"),
		now:    time.Now,
	}
}

// Start polls until ctx is done. Ticks never overlap.
func (tr *Trigger) Start(ctx context.Context) {
	tr.log.Info().
		Str("path", tr.tailer.Path()).
		Dur("interval", tr.cfg.Interval).
		Int("start", tr.cfg.Window.Start).
		Int("end", tr.cfg.Window.End).
		Msg("log tail started")

	ticker := time.NewTicker(tr.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			tr.log.Info().Msg("log tail stopped")
			return
		case <-ticker.C:
			tr.Tick(ctx)
		}
	}
}

// Tick runs one poll. It returns the number of blocks handed to the agent.
// Read failures are logged and the next tick tries again.
func (tr *Trigger) Tick(ctx context.Context) int {
	if !tr.cfg.Window.Active(tr.now()) {
		tr.log.Trace().Msg("outside active hours")
		return 0
	}

	batch, err := tr.tailer.Poll()
	if err != nil {
		tr.log.Warn().Err(err).Msg("tail poll failed")
		return 0
	}
	if len(batch.Blocks) == 0 {
		return 0
	}

	tr.hooks.Emit(ctx, hooks.EventTailBatch, map[string]any{
		"path":   tr.tailer.Path(),
		"blocks": len(batch.Blocks),
		"from":   batch.From,
		"to":     batch.To,
		"reset":  batch.Reset,
	})

	req := agent.Request{
		Principal:   tr.cfg.Principal,
		SessionKey:  SessionKey,
		Destination: tr.cfg.Destination,
		Directive:   FrameBlocks(batch.Blocks),
	}
	if _, err := tr.runner.Run(ctx, req); err != nil {
		tr.log.Warn().Err(err).Int("blocks", len(batch.Blocks)).Msg("tail run failed")
	}
	return len(batch.Blocks)
}

// FrameBlocks joins blocks into one directive.
func FrameBlocks(blocks []string) string {
	return DirectivePrefix + "\n\n" + strings.Join(blocks, "\n\n")
}
