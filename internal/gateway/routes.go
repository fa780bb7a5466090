package gateway

import (
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/version"
)

func (s *Server) registerHTTPRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	r.NotFound(handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle(MethodHealth, s.rpcHealth)
	s.Handle(MethodChannelsStatus, s.rpcChannelsStatus)
	s.Handle(MethodSessionList, s.rpcSessionList)
	s.Handle(MethodChatSend, s.rpcChatSend)
	s.Handle(MethodChatReact, s.rpcChatReact)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	s.mu.RLock()
	started := s.startedAt
	s.mu.RUnlock()

	var uptime int64
	if !started.IsZero() {
		uptime = time.Since(started).Milliseconds()
	}
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  version.Version,
		Clients:  s.clients.Count(),
		UptimeMs: uptime,
	})
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	if s.channels != nil {
		rc.Respond(map[string]any{"channels": s.channels.Status()})
		return
	}
	rc.Respond(map[string]any{"channels": []domain.ChannelStatus{s.Status()}})
}

func (s *Server) rpcSessionList(rc *RequestContext) {
	sessions := []string{}
	if s.sessions != nil {
		sessions = append(sessions, s.sessions.Keys()...)
	}
	rc.Respond(map[string]any{"sessions": sessions})
}

// principalFor is the sender id a console client acts as.
func (s *Server) principalFor(c *Client) string {
	if s.principal != "" {
		return s.principal
	}
	return c.Info.ID
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	var p ChatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}

	s.mu.RLock()
	handler := s.onMessage
	s.mu.RUnlock()
	if handler == nil {
		rc.RespondError("unavailable", "console is not attached to an agent")
		return
	}

	msg := domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: ChannelID,
		From:      s.principalFor(rc.Client),
		FromName:  rc.Client.Info.DisplayName,
		ChatID:    p.ChatID,
		ChatType:  domain.ChatTypeDM,
		Body:      p.Message,
		Timestamp: time.Now(),
		ReplyToID: p.ReplyToID,
		Addressed: true,
	}
	if msg.ChatID == "" {
		msg.ChatID = rc.Client.ChatID
	}

	rc.Respond(ChatSendResult{MessageID: msg.ID, ChatID: msg.ChatID})
	handler(msg)
}

func (s *Server) rpcChatReact(rc *RequestContext) {
	var p ChatReactParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.MessageID == "" || p.Emoji == "" {
		rc.RespondError("invalid_params", "messageId and emoji are required")
		return
	}

	chatID, ok := s.chatOf(p.MessageID)
	if !ok {
		if p.ChatID == "" {
			rc.RespondError("not_found", "unknown message: "+p.MessageID)
			return
		}
		chatID = p.ChatID
	}

	s.mu.RLock()
	handler := s.onReact
	s.mu.RUnlock()
	if handler == nil {
		rc.RespondError("unavailable", "console is not attached to an agent")
		return
	}

	rc.Respond(map[string]any{"messageId": p.MessageID, "chatId": chatID})
	handler(domain.ReactionEvent{
		ChannelID: ChannelID,
		ChatID:    chatID,
		MessageID: p.MessageID,
		UserID:    s.principalFor(rc.Client),
		Emoji:     p.Emoji,
		Timestamp: time.Now(),
	})
}
