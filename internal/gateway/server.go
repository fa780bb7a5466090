// Package gateway serves the local console: an authenticated WebSocket chat
// surface on a chi router. It implements domain.Channel under the id
// "console" so the agent can take directives from it and deliver
// corrections to it.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/vyrtuous/internal/channel"
	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/domain"
	"github.com/soyeahso/vyrtuous/internal/hooks"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/version"
)

// ChannelID is the id the console registers under.
const ChannelID = "console"

const (
	maxPayload       = 4 * 1024 * 1024
	handshakeTimeout = 10 * time.Second
	maxDelivered     = 1024
)

var ErrClientClosed = errors.New("client connection closed")

// SessionLister lists the session keys that hold conversation state.
type SessionLister interface {
	Keys() []string
}

// Server is the console HTTP + WebSocket server.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	eventSeq atomic.Int64

	principal string
	channels  *channel.Registry
	sessions  SessionLister
	hooks     *hooks.Manager

	mu        sync.RWMutex
	onMessage func(msg domain.InboundMessage)
	onReact   func(ev domain.ReactionEvent)
	delivered map[string]string // message id -> chat id
	order     []string

	running    atomic.Bool
	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
	limiter    *authLimiter
}

// ServerOption configures the console server.
type ServerOption func(*Server)

// WithPrincipal sets the principal id console clients act as. Without it
// a client acts as its declared client id.
func WithPrincipal(id string) ServerOption {
	return func(s *Server) { s.principal = id }
}

// WithChannels sets the channel registry for status reporting.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) { s.channels = ch }
}

// WithSessions sets the source for session.list.
func WithSessions(sl SessionLister) ServerOption {
	return func(s *Server) { s.sessions = sl }
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// New creates a console server.
func New(cfg config.GatewayConfig, log *logging.Logger, opts ...ServerOption) *Server {
	l := log.Sub("gateway")
	s := &Server{
		cfg:       cfg,
		auth:      ResolveAuth(cfg.Auth),
		log:       l,
		clients:   NewClientRegistry(l),
		handlers:  make(map[string]RequestHandler),
		delivered: make(map[string]string),
		limiter:   newAuthLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRPCHandlers()
	return s
}

// ID implements domain.Channel.
func (s *Server) ID() string { return ChannelID }

// Capabilities implements domain.Channel.
func (s *Server) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
		Reactions: true,
		Reply:     true,
	}
}

// OnMessage implements domain.Channel.
func (s *Server) OnMessage(handler func(msg domain.InboundMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = handler
}

// OnReaction implements domain.Channel.
func (s *Server) OnReaction(handler func(ev domain.ReactionEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReact = handler
}

// Status reports whether the console is serving.
func (s *Server) Status() domain.ChannelStatus {
	running := s.running.Load()
	return domain.ChannelStatus{ChannelID: ChannelID, Connected: running, Running: running}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names in sorted order.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Send implements domain.Channel. The message is pushed to every client in
// the addressed chat as a chat.message event carrying a fresh message id.
func (s *Server) Send(_ context.Context, msg domain.OutboundMessage) (string, error) {
	if msg.To == "" {
		return "", errors.New("console: empty chat id")
	}
	id := uuid.New().String()
	event := ChatMessage{
		MessageID: id,
		ChatID:    msg.To,
		Body:      msg.Body,
		ReplyToID: msg.ReplyToID,
		Timestamp: time.Now().UnixMilli(),
	}
	if n := s.clients.SendToChat(msg.To, EventChatMessage, event, s.eventSeq.Add(1)); n == 0 {
		return "", fmt.Errorf("console: no client in chat %q", msg.To)
	}
	s.remember(id, msg.To)
	return id, nil
}

// React implements domain.Channel.
func (s *Server) React(_ context.Context, chatID, messageID, emoji string) error {
	s.clients.SendToChat(chatID, EventChatReact, ChatReaction{
		MessageID: messageID,
		ChatID:    chatID,
		Emoji:     emoji,
	}, s.eventSeq.Add(1))
	return nil
}

func (s *Server) remember(id, chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered[id] = chatID
	s.order = append(s.order, id)
	if len(s.order) > maxDelivered {
		delete(s.delivered, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Server) chatOf(messageID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.delivered[messageID]
	return chat, ok
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Router builds the chi router serving the console.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestIDHeader)
	r.Use(requestLogger(s.log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors(s.cfg.AllowedOrigins))
	s.registerHTTPRoutes(r)
	return r
}

// Start implements domain.Channel. It serves until ctx is cancelled or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the console on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.running.Store(true)

	if s.cfg.Bind != "" && s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("console listens beyond loopback without TLS")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("auth", s.auth.Mode).
		Int("methods", len(s.handlers)).
		Msg("console ready")
	s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		sweep := time.NewTicker(time.Minute)
		defer sweep.Stop()
		for {
			select {
			case <-sweep.C:
				s.limiter.sweep()
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				s.Stop(shutdownCtx)
				return
			case <-stopped:
				return
			}
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.running.Store(false)
		return err
	}
	return nil
}

// Stop implements domain.Channel.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.log.Info().Msg("shutting down console")
	s.hooks.Emit(ctx, hooks.EventGatewayStop, nil)
	s.clients.CloseAll()

	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	return srv.Shutdown(ctx)
}

// handleWebSocket upgrades to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after failed handshakes")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.limiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()
	s.readLoop(client)
}

// handshake sends a challenge, reads the connect request, authenticates
// it and answers with hello-ok.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != MethodConnect {
		rejectAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		rejectAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
		return nil, fmt.Errorf("parsing connect params: %w", err)
	}
	if params.Protocol != 0 && params.Protocol != ProtocolVersion {
		rejectAndClose(conn, frame.ID, "protocol_error", fmt.Sprintf("unsupported protocol %d", params.Protocol))
		return nil, fmt.Errorf("unsupported protocol %d", params.Protocol)
	}

	result := Authorize(s.auth, params.Auth)
	if !result.OK {
		rejectAndClose(conn, frame.ID, "unauthorized", result.Reason)
		return nil, fmt.Errorf("auth failed: %s", result.Reason)
	}
	conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params.Client, result)
	hello := HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Name:    version.Name,
			Version: version.Version,
			ConnID:  client.ConnID,
			ChatID:  client.ChatID,
		},
		Methods: s.Methods(),
		Events:  []string{EventChallenge, EventChatMessage, EventChatReact},
	}
	resp, err := NewResponse(frame.ID, hello)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("client", params.Client.ID).
		Str("method", result.Method).
		Msg("client authenticated")
	return client, nil
}

// readLoop processes request frames from an authenticated client.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read ended")
			}
			return
		}
		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(client, frame)
	}
}

func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, "method_not_found", "unknown method: "+frame.Method)
		return
	}
	handler(&RequestContext{Client: client, Frame: frame, Server: s})
}

func rejectAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, code, message))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
