package cli

import (
	"context"
	"sync"

	"github.com/soyeahso/vyrtuous/internal/events"
	"github.com/soyeahso/vyrtuous/internal/plugin"
	"github.com/soyeahso/vyrtuous/internal/tail"
)

// tailPlugin runs the log-tail trigger until stopped.
type tailPlugin struct {
	trigger *tail.Trigger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (p *tailPlugin) ID() string { return "tail" }

func (p *tailPlugin) Start(ctx context.Context, _ plugin.API) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.trigger.Start(ctx)
	}()
	return nil
}

func (p *tailPlugin) Stop(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// mqttPlugin forwards hook events to the broker.
type mqttPlugin struct {
	publisher *events.Publisher
	api       plugin.API
}

func (p *mqttPlugin) ID() string { return "mqtt" }

// Start subscribes to every hook event and connects in the background;
// events emitted before the connection is up are dropped.
func (p *mqttPlugin) Start(ctx context.Context, api plugin.API) error {
	p.api = api
	p.publisher.Attach(api.Hooks)
	go func() {
		if err := p.publisher.Start(ctx); err != nil {
			api.Log.Error().Err(err).Msg("event publisher failed to start")
		}
	}()
	return nil
}

func (p *mqttPlugin) Stop(ctx context.Context) error {
	p.publisher.Detach(p.api.Hooks)
	return p.publisher.Stop(ctx)
}
