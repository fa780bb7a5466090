package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/vyrtuous/internal/agent"
	"github.com/soyeahso/vyrtuous/internal/channel"
	"github.com/soyeahso/vyrtuous/internal/channel/irc"
	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/events"
	"github.com/soyeahso/vyrtuous/internal/feedback"
	"github.com/soyeahso/vyrtuous/internal/gateway"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/llm"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/plugin"
	"github.com/soyeahso/vyrtuous/internal/routing"
	"github.com/soyeahso/vyrtuous/internal/rpc"
	"github.com/soyeahso/vyrtuous/internal/store"
	"github.com/soyeahso/vyrtuous/internal/tail"
	"github.com/soyeahso/vyrtuous/internal/tools"
)

// app is the assembled agent: storage, chat surfaces, tools, the control
// loop and its triggers.
type app struct {
	cfg config.Config
	log *logging.Logger

	db            *store.DB
	conversations agent.ConversationStore
	hooks         *hooks.Manager
	channels      *channel.Registry
	console       *gateway.Server
	tracked       *feedback.Registry
	feedback      *feedback.Handler
	tools         *tools.Registry
	rpc           *rpc.Gateway
	driver        *agent.Driver
	router        *routing.Router
	trigger       *tail.Trigger
	events        *events.Publisher
	plugins       *plugin.Registry
}

// appOptions select which surfaces an app is built with.
type appOptions struct {
	// surfaces registers IRC and the console as configured.
	surfaces bool
	// extra channels are registered after the configured ones.
	extra []domain.Channel
	// noModel builds everything but the control loop.
	noModel bool
}

// newApp wires every component from cfg. The caller owns Close.
func newApp(cfg config.Config, p config.Paths, log *logging.Logger, opts appOptions) (*app, error) {
	db, err := store.Open(p.DatabasePath(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:           cfg,
		log:           log,
		db:            db,
		conversations: agent.NewMemoryConversationStore(cfg.Agent.Window),
		hooks:         hooks.NewManager(log),
		channels:      channel.NewRegistry(log),
		tracked:       feedback.NewRegistry(),
	}

	if opts.surfaces {
		if cfg.Channels.IRC != nil {
			a.channels.Register(irc.New(*cfg.Channels.IRC, log))
		}
		if cfg.Gateway.Enabled {
			a.console = gateway.New(cfg.Gateway, log,
				gateway.WithPrincipal(cfg.Owner),
				gateway.WithChannels(a.channels),
				gateway.WithSessions(a.conversations),
				gateway.WithHooks(a.hooks),
			)
			a.channels.Register(a.console)
		}
	}
	for _, ch := range opts.extra {
		a.channels.Register(ch)
	}

	a.feedback = feedback.NewHandler(a.tracked, feedback.NewLog(p.FeedbackPath(cfg)), a.hooks, log)
	a.tools = buildTools(cfg, a.channels, a.tracked, log)
	a.rpc = rpc.NewGateway(a.tools, log)

	if !opts.noModel {
		driver, err := buildDriver(cfg, a, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.driver = driver
		a.router = routing.NewRouter(
			routing.Config{Owner: cfg.Owner, CommandPrefix: cfg.CommandPrefix},
			a.channels, a.driver, a.feedback, a.hooks, log,
		)
		if cfg.Tail.Enabled && cfg.Tail.Path != "" {
			a.trigger = tail.NewTrigger(tail.TriggerConfig{
				Interval:    cfg.Tail.Interval.Duration,
				Window:      tail.WindowFrom(cfg.Tail.ActiveHours),
				Principal:   cfg.Owner,
				Destination: tailDestination(cfg),
			}, a.tailer(), a.router, a.hooks, log)
		}
	}

	a.plugins = plugin.NewRegistry(a.hooks, log)
	if a.trigger != nil {
		a.plugins.Register(&tailPlugin{trigger: a.trigger})
	}
	if cfg.Events.MQTT != nil && cfg.Events.MQTT.Broker != "" {
		a.events = events.New(*cfg.Events.MQTT, log)
		a.plugins.Register(&mqttPlugin{publisher: a.events})
	}
	return a, nil
}

// buildTools registers the built-in tools against the channel registry.
func buildTools(cfg config.Config, channels *channel.Registry, tracked *feedback.Registry, log *logging.Logger) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.CorrectFallacy(channels, tracked, tailDestination(cfg), log))
	reg.Register(tools.SendMessage(channels))
	reg.Register(tools.ListChannels(channels))
	if cfg.Tools.Search.APIKey != "" {
		reg.Register(tools.SearchWeb(tools.SearchConfig{
			APIKey:   cfg.Tools.Search.APIKey,
			Endpoint: cfg.Tools.Search.Endpoint,
			Count:    cfg.Tools.Search.Count,
		}))
	}
	return reg
}

func buildDriver(cfg config.Config, a *app, log *logging.Logger) (*agent.Driver, error) {
	registry := llm.NewRegistryFromConfig(cfg.Model, log)
	providers := registry.List()
	if len(providers) == 0 {
		return nil, fmt.Errorf("no model provider available for %q", cfg.Model.Provider)
	}
	log.Info().Strs("providers", providers).Msg("model providers available")

	catalog := llm.NewCatalog(cfg.Model)
	client := agent.NewFailoverClient(registry, catalog, cfg.Model.Provider, cfg.Model.Fallbacks, log)

	requestType := cfg.Model.RequestType
	if requestType == "" {
		requestType = llm.DefaultRequestType(cfg.Model.Provider)
	}
	reasoner := agent.NewReasoner(agent.ReasonerConfig{
		Provider:    cfg.Model.Provider,
		Model:       cfg.Model.Name,
		RequestType: requestType,
		Stream:      cfg.Model.Stream,
	}, client, catalog, a.conversations, agent.ToolDefinitions(a.tools.Definitions()), log)

	return agent.NewDriver(
		agent.DriverConfig{Owner: cfg.Owner, AckText: cfg.Agent.AckText, MaxTurns: cfg.Agent.MaxTurns},
		agent.DriverDeps{
			Store:      a.conversations,
			Reasoner:   reasoner,
			Supervisor: agent.NewSupervisor(a.conversations, cfg.Agent.MaxRetries, cfg.Agent.Timeout.Duration, log),
			Executor:   agent.NewExecutor(a.rpc, a.conversations, cfg.Agent.ToolWorkers, a.hooks, log),
			Sender:     a.channels,
			Hooks:      a.hooks,
		},
		log,
	), nil
}

// tailer reads the configured log with offsets kept in the chosen store.
func (a *app) tailer() *tail.Tailer {
	var cursors tail.CursorStore
	if a.cfg.Tail.CursorStore == "memory" {
		cursors = tail.NewMemoryCursorStore()
	} else {
		cursors = store.NewSQLiteCursorStore(a.db)
	}
	return tail.NewTailer(a.cfg.Tail.Path, cursors, a.log)
}

func tailDestination(cfg config.Config) domain.Destination {
	return domain.Destination{ChannelID: cfg.Tail.Channel, ChatID: cfg.Tail.ChatID}
}

// run starts every surface and trigger and blocks until ctx is done.
func (a *app) run(ctx context.Context) error {
	if a.router == nil {
		return errors.New("no control loop configured")
	}
	if a.channels.Count() == 0 && a.trigger == nil {
		return errors.New("nothing to do: configure a channel, the console or the log tail")
	}

	// Plugins first so the publisher sees channel lifecycle events.
	if err := a.plugins.StartAll(ctx); err != nil {
		return err
	}
	a.router.Wire(ctx)
	if err := a.channels.StartAll(ctx); err != nil {
		a.plugins.StopAll(context.WithoutCancel(ctx))
		return fmt.Errorf("starting channels: %w", err)
	}
	a.log.Info().
		Int("channels", a.channels.Count()).
		Strs("plugins", a.plugins.List()).
		Str("owner", a.cfg.Owner).
		Msg("vyrtuous running")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Agent.Timeout.Duration)
	defer cancel()
	a.channels.StopAll(stopCtx)
	a.router.Wait()
	a.plugins.StopAll(stopCtx)
	return nil
}

// Close releases the database.
func (a *app) Close() error {
	return a.db.Close()
}
