// Package irc implements the IRC chat surface using the girc library.
// Delivered messages carry a short ref so owners can react to them, either
// with IRCv3 +draft/react tags or with a plain "✅ ref" reply.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"

	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/version"
)

// IRCv3 tags and capabilities used for reactions.
const (
	capMessageTags = "message-tags"
	capEchoMessage = "echo-message"
	tagMsgID       = "msgid"
	tagReact       = "+draft/react"
	tagReply       = "+draft/reply"
	cmdTAGMSG      = "TAGMSG"
)

// maxLineLen keeps PRIVMSG lines under the 512 byte protocol limit.
const maxLineLen = 400

// Channel implements domain.Channel for IRC.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger
	refs   *refTracker

	mu       sync.RWMutex
	handler  func(msg domain.InboundMessage)
	reaction func(ev domain.ReactionEvent)
	running  bool
	lastErr  string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg:  cfg,
		log:  log.Sub("irc"),
		refs: newRefTracker(),
	}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM, domain.ChatTypeGroup},
		Reactions: true,
		Reply:     true,
	}
}

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *Channel) OnReaction(handler func(ev domain.ReactionEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reaction = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "irc",
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// Start connects to the IRC server and begins processing messages.
func (c *Channel) Start(ctx context.Context) error {
	port := c.cfg.Port
	if port == 0 {
		if c.cfg.UseTLS {
			port = 6697
		} else {
			port = 6667
		}
	}

	gircCfg := girc.Config{
		Server:  c.cfg.Server,
		Port:    port,
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "vyrtuous fallacy finder",
		SSL:     c.cfg.UseTLS,
		Version: version.Name + "/" + version.Version,
		SupportedCaps: map[string][]string{
			capMessageTags: nil,
			capEchoMessage: nil,
		},
	}

	if c.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{
			ServerName: c.cfg.Server,
		}
	}

	if c.cfg.SASL && c.cfg.Password != "" {
		gircCfg.SASL = &girc.SASLPlain{
			User: c.cfg.Nick,
			Pass: c.cfg.Password,
		}
	} else if c.cfg.Password != "" {
		gircCfg.ServerPass = c.cfg.Password
	}

	client := girc.New(gircCfg)
	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()
	c.registerHandlers(client)

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", port).
		Str("nick", c.cfg.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	// Connect blocks until the connection ends.
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop gracefully disconnects from the IRC server.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit(version.Name + " shutting down")
	}
	c.running = false
	return nil
}

func (c *Channel) connected() (*girc.Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil || !c.client.IsConnected() {
		return nil, false
	}
	return c.client, true
}

// Send delivers a message to an IRC channel or user and returns its ref.
// The ref is appended to the last line as "[ref]".
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) (string, error) {
	client, ok := c.connected()
	if !ok {
		return "", fmt.Errorf("irc: not connected")
	}

	target := msg.To
	if target == "" {
		return "", fmt.Errorf("irc: no target specified")
	}

	ref := c.refs.issue(target)
	lines := splitMessage(strings.TrimRight(msg.Body, "\n"), maxLineLen)
	lines[len(lines)-1] += " [" + ref + "]"

	replyMsgID := ""
	if msg.ReplyToID != "" && client.HasCapability(capMessageTags) {
		replyMsgID = c.replyTarget(msg.ReplyToID)
	}

	for i, line := range lines {
		ev := &girc.Event{Command: girc.PRIVMSG, Params: []string{target, line}}
		if i == 0 && replyMsgID != "" {
			ev.Tags = girc.Tags{tagReply: replyMsgID}
		}
		client.Send(ev)
	}

	c.log.Debug().
		Str("to", target).
		Str("ref", ref).
		Int("lines", len(lines)).
		Msg("sent IRC message")
	return ref, nil
}

// React attaches emoji to a delivered message with a +draft/react TAGMSG.
// Servers without message-tags, and messages whose msgid was never echoed,
// return domain.ErrUnsupported.
func (c *Channel) React(ctx context.Context, chatID, messageID, emoji string) error {
	client, ok := c.connected()
	if !ok {
		return fmt.Errorf("irc: not connected")
	}
	if !client.HasCapability(capMessageTags) {
		return domain.ErrUnsupported
	}
	msgid, ok := c.refs.msgidFor(messageID)
	if !ok {
		return domain.ErrUnsupported
	}
	client.Send(&girc.Event{
		Command: cmdTAGMSG,
		Params:  []string{chatID},
		Tags:    girc.Tags{tagReact: emoji, tagReply: msgid},
	})
	return nil
}

// replyTarget maps a ref or a raw server msgid to the msgid to reply to.
func (c *Channel) replyTarget(id string) string {
	if msgid, ok := c.refs.msgidFor(id); ok {
		return msgid
	}
	if c.refs.known(id) {
		return ""
	}
	return id
}

// registerHandlers sets up all IRC event handlers.
func (c *Channel) registerHandlers(client *girc.Client) {
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(cmdTAGMSG, c.onTagmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")

	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		client.Cmd.Join(ch)
	}
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	if strings.EqualFold(e.Source.Name, client.GetNick()) {
		c.onEcho(e)
		return
	}
	c.dispatchMessage(client.GetNick(), e)
}

// onEcho binds the msgid the server assigned to one of our messages.
func (c *Channel) onEcho(e girc.Event) {
	if e.Tags == nil {
		return
	}
	msgid, ok := e.Tags.Get(tagMsgID)
	if !ok || msgid == "" {
		return
	}
	if ref, ok := extractRef(e.Last()); ok {
		c.refs.bind(ref, msgid)
	}
}

// onTagmsg turns +draft/react tags on our messages into reaction events.
func (c *Channel) onTagmsg(client *girc.Client, e girc.Event) {
	if e.Source == nil || e.Tags == nil || len(e.Params) == 0 {
		return
	}
	if strings.EqualFold(e.Source.Name, client.GetNick()) {
		return
	}
	emoji, ok := e.Tags.Get(tagReact)
	if !ok {
		return
	}
	replyTo, ok := e.Tags.Get(tagReply)
	if !ok {
		return
	}
	ref, ok := c.refs.refFor(replyTo)
	if !ok {
		return
	}
	c.deliverReaction(e.Source.Name, c.chatFor(client.GetNick(), e), ref, emoji)
}

// chatFor returns the conversation an event belongs to: the channel, or
// the sender for direct messages.
func (c *Channel) chatFor(nick string, e girc.Event) string {
	target := e.Params[0]
	if strings.EqualFold(target, nick) {
		return e.Source.Name
	}
	return target
}

// dispatchMessage converts a PRIVMSG into an inbound message or a text
// reaction.
func (c *Channel) dispatchMessage(nick string, e girc.Event) {
	chatID := c.chatFor(nick, e)
	chatType := domain.ChatTypeGroup
	if !e.IsFromChannel() {
		chatType = domain.ChatTypeDM
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	if emoji, ref, ok := parseTextReaction(body); ok && c.refs.known(ref) {
		c.deliverReaction(e.Source.Name, chatID, ref, emoji)
		return
	}

	msg := domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "irc",
		From:      e.Source.Name,
		FromName:  e.Source.Name,
		ChatID:    chatID,
		ChatType:  chatType,
		Timestamp: time.Now(),
		Addressed: chatType == domain.ChatTypeDM,
	}
	if e.Tags != nil {
		if id, ok := e.Tags.Get(tagMsgID); ok {
			msg.ID = id
		}
		if replyTo, ok := e.Tags.Get(tagReply); ok {
			msg.ReplyToID = replyTo
			if _, ours := c.refs.refFor(replyTo); ours {
				msg.Addressed = true
			}
		}
	}

	if stripped, mentioned := stripMention(body, nick); mentioned {
		msg.Addressed = true
		body = stripped
	}
	msg.Body = body

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

func (c *Channel) deliverReaction(from, chatID, ref, emoji string) {
	c.mu.RLock()
	handler := c.reaction
	c.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(domain.ReactionEvent{
		ChannelID: "irc",
		ChatID:    chatID,
		MessageID: ref,
		UserID:    from,
		Emoji:     emoji,
		Timestamp: time.Now(),
	})
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// stripMention removes a leading "nick:" or "nick," address, or reports a
// mention of nick anywhere in body.
func stripMention(body, nick string) (string, bool) {
	if nick == "" {
		return body, false
	}
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed)
	ln := strings.ToLower(nick)
	if strings.HasPrefix(lower, ln) {
		rest := trimmed[len(nick):]
		if rest == "" {
			return "", true
		}
		switch rest[0] {
		case ':', ',', ' ':
			return strings.TrimSpace(strings.TrimLeft(rest, ":, ")), true
		}
	}
	if strings.Contains(lower, ln) {
		return trimmed, true
	}
	return body, false
}

// splitMessage breaks a long message into chunks suitable for IRC. Each
// newline produces a separate chunk because PRIVMSG cannot carry embedded
// newlines. Lines longer than maxLen are split at rune boundaries.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if line == "" {
			line = " "
		}
		chunks = append(chunks, line)
	}
	if len(chunks) == 0 {
		return []string{" "}
	}
	return chunks
}
