package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/eclipse/paho.golang/paho"
	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type fakeSink struct {
	mu   sync.Mutex
	msgs []*paho.Publish
	err  error
}

func (f *fakeSink) Publish(_ context.Context, p *paho.Publish) (*paho.PublishResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, p)
	return &paho.PublishResponse{}, nil
}

func (f *fakeSink) published() []*paho.Publish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*paho.Publish(nil), f.msgs...)
}

func startedPublisher(cfg config.MQTTConfig) (*Publisher, *fakeSink) {
	p := New(cfg, silentLog())
	s := &fakeSink{}
	p.sink = s
	return p, s
}

func TestTopics(t *testing.T) {
	p := New(config.MQTTConfig{}, silentLog())
	assert.Equal(t, "vyrtuous/events/run_end", p.EventTopic(hooks.EventRunEnd))
	assert.Equal(t, "vyrtuous/availability", p.AvailabilityTopic())
	assert.Equal(t, "vyrtuous-vyrtuous", p.clientID())

	p = New(config.MQTTConfig{TopicPrefix: "home/agent", ClientID: "desk"}, silentLog())
	assert.Equal(t, "home/agent/events/tail_batch", p.EventTopic(hooks.EventTailBatch))
	assert.Equal(t, "desk", p.clientID())
}

func TestPublishBeforeStart(t *testing.T) {
	p := New(config.MQTTConfig{}, silentLog())
	err := p.Publish(context.Background(), hooks.Payload{Event: hooks.EventRunStart})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.NoError(t, p.handle(context.Background(), hooks.Payload{Event: hooks.EventRunStart}))
	assert.NoError(t, p.Stop(context.Background()))
}

func TestAttachForwardsEveryEvent(t *testing.T) {
	p, s := startedPublisher(config.MQTTConfig{TopicPrefix: "t"})
	hm := hooks.NewManager(silentLog())
	p.Attach(hm)

	for _, e := range hooks.AllEvents {
		assert.Equal(t, 1, hm.Count(e), e)
	}

	hm.Emit(context.Background(), hooks.EventFeedbackApproved, map[string]any{"messageId": "ab12cd"})

	msgs := s.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "t/events/feedback_approved", msgs[0].Topic)
	assert.Zero(t, msgs[0].QoS)
	assert.False(t, msgs[0].Retain)

	var got hooks.Payload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, hooks.EventFeedbackApproved, got.Event)
	assert.Equal(t, "ab12cd", got.Data["messageId"])
	assert.False(t, got.Time.IsZero())

	p.Detach(hm)
	for _, e := range hooks.AllEvents {
		assert.Zero(t, hm.Count(e), e)
	}
}

func TestPublishError(t *testing.T) {
	p, s := startedPublisher(config.MQTTConfig{})
	s.err = errors.New("connection down")

	err := p.Publish(context.Background(), hooks.Payload{Event: hooks.EventRunFailed})
	assert.ErrorContains(t, err, "publish run_failed: connection down")
}

func TestPublishAvailabilityRetained(t *testing.T) {
	p, s := startedPublisher(config.MQTTConfig{})
	p.publishAvailability(context.Background(), s, "online")

	msgs := s.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "vyrtuous/availability", msgs[0].Topic)
	assert.Equal(t, []byte("online"), msgs[0].Payload)
	assert.True(t, msgs[0].Retain)
	assert.EqualValues(t, 1, msgs[0].QoS)
}

func TestStartRejectsBadBroker(t *testing.T) {
	p := New(config.MQTTConfig{Broker: "://nope"}, silentLog())
	err := p.Start(context.Background())
	assert.ErrorContains(t, err, "parse mqtt broker URL")
}
