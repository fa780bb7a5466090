// Package events bridges hook events to an MQTT broker. Every event is
// published as JSON on <prefix>/events/<event>; a retained
// <prefix>/availability topic reports online/offline, with the broker
// publishing "offline" through the will message if the process dies.
package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/version"
)

const (
	defaultTopicPrefix = "vyrtuous"
	publishTimeout     = 5 * time.Second
	connectTimeout     = 30 * time.Second
	hookName           = "mqtt"
)

// ErrNotStarted is returned when publishing before Start.
var ErrNotStarted = errors.New("mqtt publisher not started")

// sink is the part of the autopaho connection manager the publisher uses.
type sink interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// Publisher owns the broker connection and forwards hook events to it.
type Publisher struct {
	cfg    config.MQTTConfig
	prefix string
	log    *logging.Logger

	mu   sync.RWMutex
	cm   *autopaho.ConnectionManager
	sink sink
}

// New creates a Publisher. It does not connect until Start.
func New(cfg config.MQTTConfig, log *logging.Logger) *Publisher {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return &Publisher{cfg: cfg, prefix: prefix, log: log.Sub("events")}
}

// EventTopic is the topic an event is published on.
func (p *Publisher) EventTopic(event string) string {
	return p.prefix + "/events/" + event
}

// AvailabilityTopic carries the retained online/offline state.
func (p *Publisher) AvailabilityTopic() string {
	return p.prefix + "/availability"
}

func (p *Publisher) clientID() string {
	if p.cfg.ClientID != "" {
		return p.cfg.ClientID
	}
	return version.Name + "-" + p.prefix
}

// Attach subscribes the publisher to every hook event.
func (p *Publisher) Attach(hm *hooks.Manager) {
	hm.OnAll(hookName, p.handle)
}

// Detach removes the publisher's hook handlers.
func (p *Publisher) Detach(hm *hooks.Manager) {
	for _, e := range hooks.AllEvents {
		hm.Off(e, hookName)
	}
}

// Start connects to the broker and waits up to 30s for the first
// connection. autopaho keeps reconnecting in the background after that.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.AvailabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.log.Info().Str("broker", p.cfg.Broker).Msg("mqtt connected")
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.log.Warn().Err(err).Msg("mqtt connection error")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.clientID(),
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.mu.Lock()
	p.cm = cm
	p.sink = cm
	p.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.log.Warn().Err(err).Msg("mqtt initial connection timed out, retrying in background")
	}
	return nil
}

// Stop publishes "offline" and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	cm := p.cm
	p.cm, p.sink = nil, nil
	p.mu.Unlock()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

// Publish sends one hook payload to its event topic.
func (p *Publisher) Publish(ctx context.Context, payload hooks.Payload) error {
	p.mu.RLock()
	s := p.sink
	p.mu.RUnlock()
	if s == nil {
		return ErrNotStarted
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", payload.Event, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := s.Publish(ctx, &paho.Publish{
		Topic:   p.EventTopic(payload.Event),
		Payload: body,
		QoS:     0,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", payload.Event, err)
	}
	return nil
}

// handle forwards a hook event. An unstarted publisher drops it.
func (p *Publisher) handle(ctx context.Context, payload hooks.Payload) error {
	err := p.Publish(ctx, payload)
	if errors.Is(err, ErrNotStarted) {
		return nil
	}
	return err
}

func (p *Publisher) publishAvailability(ctx context.Context, s sink, status string) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := s.Publish(ctx, &paho.Publish{
		Topic:   p.AvailabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.log.Warn().Err(err).Str("status", status).Msg("mqtt availability publish failed")
		return
	}
	p.log.Info().Str("status", status).Msg("mqtt availability published")
}
