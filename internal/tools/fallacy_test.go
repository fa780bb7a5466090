package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
)

type reaction struct {
	MessageID string
	Emoji     string
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []domain.OutboundMessage
	reactions []reaction
	sendErr   error
	reactErr  error
}

func (f *fakeMessenger) Send(_ context.Context, msg domain.OutboundMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("m%d", len(f.sent)), nil
}

func (f *fakeMessenger) React(_ context.Context, _, _, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactErr != nil {
		return f.reactErr
	}
	f.reactions = append(f.reactions, reaction{messageID, emoji})
	return nil
}

type fakeTracker struct {
	entries []domain.FeedbackEntry
}

func (f *fakeTracker) Track(e domain.FeedbackEntry) { f.entries = append(f.entries, e) }

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

func invokeStatus(t *testing.T, h Handler, args string) Status {
	t.Helper()
	r := NewRegistry()
	r.Register(h)
	out, err := r.Invoke(context.Background(), h.Name(), json.RawMessage(args))
	require.NoError(t, err)
	var s Status
	require.NoError(t, json.Unmarshal(out, &s))
	return s
}

func TestCorrectFallacySendsAndTracks(t *testing.T) {
	m := &fakeMessenger{}
	tr := &fakeTracker{}
	h := CorrectFallacy(m, tr, domain.Destination{}, silentLog())

	s := invokeStatus(t, h, `{
		"channelId": "irc", "chatId": "#logic", "messageId": "orig-1",
		"corrections": [
			{"fallacyName": "Ad hominem", "fallacy": "you're dumb so you're wrong", "correction": "address the argument"},
			{"fallacyName": "Tu quoque", "fallacy": "you do it too", "correction": "hypocrisy does not refute"}
		]}`)

	assert.True(t, s.Success)
	assert.Equal(t, "Sent 2 fallacy/correction messages.", s.Message)

	require.Len(t, m.sent, 2)
	assert.Equal(t, "orig-1", m.sent[0].ReplyToID)
	assert.Empty(t, m.sent[1].ReplyToID)
	assert.Equal(t, "#logic", m.sent[1].To)
	assert.Contains(t, m.sent[0].Body, "Ad hominem")
	assert.Contains(t, m.sent[0].Body, "Correction: address the argument")

	require.Len(t, tr.entries, 2)
	assert.Equal(t, domain.FeedbackEntry{DeliveredMessageID: "m1", Original: "you're dumb so you're wrong", Correction: "address the argument"}, tr.entries[0])

	assert.Equal(t, []reaction{
		{"m1", domain.ReactionApprove}, {"m1", domain.ReactionReject},
		{"m2", domain.ReactionApprove}, {"m2", domain.ReactionReject},
	}, m.reactions)
}

func TestCorrectFallacyEmpty(t *testing.T) {
	h := CorrectFallacy(&fakeMessenger{}, nil, domain.Destination{}, silentLog())
	s := invokeStatus(t, h, `{"corrections": []}`)
	assert.False(t, s.Success)
	assert.Equal(t, "No fallacy/correction pairs provided", s.Message)
}

func TestCorrectFallacyFallbackDestination(t *testing.T) {
	m := &fakeMessenger{reactErr: domain.ErrUnsupported}
	h := CorrectFallacy(m, nil, domain.Destination{ChannelID: "console", ChatID: "dev"}, silentLog())

	s := invokeStatus(t, h, `{"corrections": [{"fallacy": "everyone says so"}]}`)
	assert.True(t, s.Success)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "console", m.sent[0].ChannelID)
	assert.Equal(t, "dev", m.sent[0].To)
}

func TestCorrectFallacyRunDestinationWins(t *testing.T) {
	m := &fakeMessenger{}
	h := CorrectFallacy(m, nil, domain.Destination{ChannelID: "console", ChatID: "dev"}, silentLog())

	r := NewRegistry()
	r.Register(h)
	ctx := WithDestination(context.Background(), domain.Destination{ChannelID: "irc", ChatID: "#run"})
	_, err := r.Invoke(ctx, h.Name(), json.RawMessage(`{"corrections": [{"fallacy": "a"}]}`))
	require.NoError(t, err)

	require.Len(t, m.sent, 1)
	assert.Equal(t, "irc", m.sent[0].ChannelID)
	assert.Equal(t, "#run", m.sent[0].To)
}

func TestDestinationFromRequiresChat(t *testing.T) {
	_, ok := DestinationFrom(context.Background())
	assert.False(t, ok)
	_, ok = DestinationFrom(WithDestination(context.Background(), domain.Destination{ChannelID: "irc"}))
	assert.False(t, ok)
}

func TestCorrectFallacySendFailure(t *testing.T) {
	m := &fakeMessenger{sendErr: errors.New("disconnected")}
	h := CorrectFallacy(m, nil, domain.Destination{ChannelID: "irc", ChatID: "#x"}, silentLog())

	s := invokeStatus(t, h, `{"corrections": [{"fallacy": "a"}]}`)
	assert.False(t, s.Success)
	assert.Contains(t, s.Message, "disconnected")
}

func TestSendMessage(t *testing.T) {
	m := &fakeMessenger{}
	s := invokeStatus(t, SendMessage(m), `{"channelId":"irc","chatId":"#a","text":"hello"}`)
	assert.True(t, s.Success)
	assert.Equal(t, "Message sent with id m1", s.Message)

	s = invokeStatus(t, SendMessage(m), `{"channelId":"irc","chatId":"#a","text":"  "}`)
	assert.False(t, s.Success)
}

type fakeLister []domain.ChannelStatus

func (f fakeLister) Status() []domain.ChannelStatus { return f }

func TestListChannels(t *testing.T) {
	l := fakeLister{
		{ChannelID: "irc", Connected: true, Running: true},
		{ChannelID: "console", Running: true, LastError: "no clients"},
	}
	s := invokeStatus(t, ListChannels(l), `{"filter":"*"}`)
	assert.Equal(t, "irc connected=true running=true\nconsole connected=false running=true error=no clients", s.Message)

	s = invokeStatus(t, ListChannels(l), `{"filter":"irc"}`)
	assert.Equal(t, "irc connected=true running=true", s.Message)

	s = invokeStatus(t, ListChannels(fakeLister{}), `{"filter":"*"}`)
	assert.Equal(t, "No channels configured.", s.Message)
}
