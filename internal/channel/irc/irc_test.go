package irc

import (
	"context"
	"strings"
	"testing"

	"github.com/lrstanley/girc"
	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestNew(t *testing.T) {
	cfg := config.IRCConfig{
		Server:   "irc.libera.chat",
		Port:     6697,
		Nick:     "vyrtuous",
		Channels: []string{"#test"},
		UseTLS:   true,
	}
	ch := New(cfg, testLogger())
	assert.Equal(t, "irc", ch.ID())
}

func TestCapabilities(t *testing.T) {
	caps := New(config.IRCConfig{}, testLogger()).Capabilities()

	assert.Contains(t, caps.ChatTypes, domain.ChatTypeDM)
	assert.Contains(t, caps.ChatTypes, domain.ChatTypeGroup)
	assert.True(t, caps.Reactions)
	assert.True(t, caps.Reply)
}

func TestStatus_NotStarted(t *testing.T) {
	status := New(config.IRCConfig{}, testLogger()).Status()

	assert.Equal(t, "irc", status.ChannelID)
	assert.False(t, status.Connected)
	assert.False(t, status.Running)
	assert.Empty(t, status.LastError)
}

func TestSend_NotConnected(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	_, err := ch.Send(context.Background(), domain.OutboundMessage{To: "#test", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestReact_NotConnected(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	err := ch.React(context.Background(), "#test", "abc123", domain.ReactionApprove)
	require.Error(t, err)
}

func privmsg(from, target, text string, tags girc.Tags) girc.Event {
	return girc.Event{
		Source:  &girc.Source{Name: from, Ident: from, Host: "example.org"},
		Command: girc.PRIVMSG,
		Params:  []string{target, text},
		Tags:    tags,
	}
}

func TestDispatchMessage_Addressing(t *testing.T) {
	ch := New(config.IRCConfig{Nick: "vyrtuous"}, testLogger())
	var got []domain.InboundMessage
	ch.OnMessage(func(msg domain.InboundMessage) { got = append(got, msg) })

	ch.dispatchMessage("vyrtuous", privmsg("alice", "#debate", "vyrtuous: is this a strawman?", nil))
	ch.dispatchMessage("vyrtuous", privmsg("alice", "#debate", "just chatting", nil))
	ch.dispatchMessage("vyrtuous", privmsg("alice", "vyrtuous", "private question", nil))

	require.Len(t, got, 3)
	assert.True(t, got[0].Addressed)
	assert.Equal(t, "is this a strawman?", got[0].Body)
	assert.Equal(t, "#debate", got[0].ChatID)
	assert.Equal(t, domain.ChatTypeGroup, got[0].ChatType)

	assert.False(t, got[1].Addressed)

	assert.True(t, got[2].Addressed)
	assert.Equal(t, domain.ChatTypeDM, got[2].ChatType)
	assert.Equal(t, "alice", got[2].ChatID, "direct messages are answered to the sender")
}

func TestDispatchMessage_ReplyToOurMessage(t *testing.T) {
	ch := New(config.IRCConfig{Nick: "vyrtuous"}, testLogger())
	ref := ch.refs.issue("#debate")
	ch.refs.bind(ref, "srv-42")

	var got domain.InboundMessage
	ch.OnMessage(func(msg domain.InboundMessage) { got = msg })
	ch.dispatchMessage("vyrtuous", privmsg("alice", "#debate", "what about this one", girc.Tags{tagReply: "srv-42", tagMsgID: "srv-43"}))

	assert.True(t, got.Addressed)
	assert.Equal(t, "srv-42", got.ReplyToID)
	assert.Equal(t, "srv-43", got.ID)
}

func TestDispatchMessage_TextReaction(t *testing.T) {
	ch := New(config.IRCConfig{Nick: "vyrtuous"}, testLogger())
	ref := ch.refs.issue("#debate")

	var msgs int
	var got domain.ReactionEvent
	ch.OnMessage(func(domain.InboundMessage) { msgs++ })
	ch.OnReaction(func(ev domain.ReactionEvent) { got = ev })

	ch.dispatchMessage("vyrtuous", privmsg("alice", "#debate", "✅ "+ref, nil))
	assert.Zero(t, msgs)
	assert.Equal(t, ref, got.MessageID)
	assert.Equal(t, domain.ReactionApprove, got.Emoji)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "#debate", got.ChatID)

	ch.dispatchMessage("vyrtuous", privmsg("alice", "#debate", "✅ ffffff", nil))
	assert.Equal(t, 1, msgs, "unknown refs are ordinary messages")
}

func TestEchoAndTagReaction(t *testing.T) {
	ch := New(config.IRCConfig{Nick: "vyrtuous"}, testLogger())
	ref := ch.refs.issue("#debate")

	ch.onEcho(privmsg("vyrtuous", "#debate", "Correction: ... ["+ref+"]", girc.Tags{tagMsgID: "srv-7"}))
	id, ok := ch.refs.msgidFor(ref)
	require.True(t, ok)
	assert.Equal(t, "srv-7", id)

	r, ok := ch.refs.refFor("srv-7")
	require.True(t, ok)
	assert.Equal(t, ref, r)
}

func TestRefTrackerBounded(t *testing.T) {
	tr := newRefTracker()
	first := tr.issue("#a")
	tr.bind(first, "m0")
	for i := 0; i < maxRefs; i++ {
		tr.issue("#a")
	}
	assert.False(t, tr.known(first))
	_, ok := tr.refFor("m0")
	assert.False(t, ok)
}

func TestRefTrackerBindUnknown(t *testing.T) {
	tr := newRefTracker()
	tr.bind("abcdef", "m1")
	_, ok := tr.refFor("m1")
	assert.False(t, ok)
}

func TestParseTextReaction(t *testing.T) {
	emoji, ref, ok := parseTextReaction("  ❌ [0a1b2c] ")
	require.True(t, ok)
	assert.Equal(t, domain.ReactionReject, emoji)
	assert.Equal(t, "0a1b2c", ref)

	_, _, ok = parseTextReaction("✅ looks good")
	assert.False(t, ok)
}

func TestExtractRef(t *testing.T) {
	ref, ok := extractRef("Fallacy: x [a1b2c3]")
	require.True(t, ok)
	assert.Equal(t, "a1b2c3", ref)

	_, ok = extractRef("no ref here")
	assert.False(t, ok)
}

func TestStripMention(t *testing.T) {
	tests := []struct {
		body, want string
		mentioned  bool
	}{
		{"vyrtuous: check this", "check this", true},
		{"Vyrtuous, check this", "check this", true},
		{"hey vyrtuous check this", "hey vyrtuous check this", true},
		{"vyrtuousness is rare", "vyrtuousness is rare", true},
		{"nothing here", "nothing here", false},
	}
	for _, tt := range tests {
		got, mentioned := stripMention(tt.body, "vyrtuous")
		assert.Equal(t, tt.mentioned, mentioned, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}
}

func TestSplitMessage_Short(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, splitMessage("hello world", 400))
}

func TestSplitMessage_MultiLine(t *testing.T) {
	result := splitMessage("line one\n\nline three", 400)
	assert.Equal(t, []string{"line one", " ", "line three"}, result)
}

func TestSplitMessage_LongLine(t *testing.T) {
	result := splitMessage("abcdefghijklmnopqrstuvwxyz", 10)
	assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxyz"}, result)
}

func TestSplitMessage_RuneBoundary(t *testing.T) {
	text := strings.Repeat("é", 8) // 16 bytes
	for _, chunk := range splitMessage(text, 5) {
		assert.LessOrEqual(t, len(chunk), 5)
		assert.True(t, strings.HasPrefix(chunk, "é"))
	}
}
