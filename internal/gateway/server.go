// Package gateway is the WebSocket and HTTP edge: token auth, frame
// validation, room fan-out, and the bridge into the agent service.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/attunelabs/attune/internal/agent"
	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/usage"
	"github.com/attunelabs/attune/pkg/models"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// ReadTimeout and WriteTimeout bound the plain HTTP endpoints; the
	// WebSocket connection manages its own deadlines.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 16 * 1024
	sendBufferSize = 64
)

// Server serves the login endpoint, the WebSocket endpoint, metrics, and
// health.
type Server struct {
	config  ServerConfig
	auth    *Authenticator
	hub     *Hub
	agent   *agent.Service
	logger  *observability.Logger
	metrics *observability.Metrics

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	// usageReporter, when set, backs the usage endpoint with per-provider
	// statistics.
	usageReporter func() map[string]usage.Stats
}

// NewServer wires the gateway.
func NewServer(config ServerConfig, auth *Authenticator, hub *Hub, agentSvc *agent.Service, logger *observability.Logger, metrics *observability.Metrics) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Server{
		config:  config,
		auth:    auth,
		hub:     hub,
		agent:   agentSvc,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway is origin-agnostic; deployments front it with
			// their own origin policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetUsageReporter wires the per-provider usage snapshot into the usage
// endpoint.
func (s *Server) SetUsageReporter(reporter func() map[string]usage.Stats) {
	s.usageReporter = reporter
}

// Handler returns the gateway's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type loginRequest struct {
	Username string `json:"username"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`

	// Reminder describes the user's active trainings, "" when none.
	Reminder string `json:"reminder,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	token, principal, err := s.auth.IssueToken(r.Context(), req.Username)
	if err != nil {
		s.logger.Warn(r.Context(), "login failed", "error", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}

	reminder, err := s.agent.LoginReminder(r.Context(), *principal)
	if err != nil {
		s.logger.Warn(r.Context(), "login reminder unavailable", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token:    token,
		UserID:   principal.ID,
		Username: principal.Username,
		Reminder: reminder,
	})
}

// handleUsage reports per-provider request and cost statistics. It requires
// the same token the WebSocket handshake does.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.Verify(r.Context(), bearerToken(r)); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	stats := map[string]usage.Stats{}
	if s.usageReporter != nil {
		stats = s.usageReporter()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Providers map[string]usage.Stats `json:"providers"`
	}{Providers: stats})
}

// client is one connected WebSocket peer.
type client struct {
	server    *Server
	conn      *websocket.Conn
	principal models.Principal

	send      chan outboundFrame
	closeOnce sync.Once
}

// enqueue queues a frame for the write pump, dropping it when the client is
// too far behind.
func (c *client) enqueue(frame outboundFrame) {
	select {
	case c.send <- frame:
	default:
		c.server.logger.Warn(context.Background(), "dropping frame for slow client",
			"type", frame.Type, "username", c.principal.Username)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	principal, err := s.auth.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "upgrade failed", "error", err)
		return
	}

	c := &client{
		server:    s,
		conn:      conn,
		principal: *principal,
		send:      make(chan outboundFrame, sendBufferSize),
	}

	ctx := context.WithValue(context.Background(), observability.UserIDKey, principal.ID)
	if err := s.hub.register(ctx, c); err != nil {
		s.logger.Error(ctx, "register failed", "error", err)
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump(ctx)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// readPump reads, validates, and dispatches frames until the peer goes away.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.server.hub.unregister(c)
		c.close()
		c.conn.Close()
		if err := c.server.agent.Logout(ctx, c.principal, nil); err != nil {
			c.server.logger.Warn(ctx, "logout flush failed", "error", err)
		}
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug(ctx, "connection closed", "error", err)
			}
			return
		}
		frame, err := validateInbound(raw)
		if err != nil {
			c.enqueue(errorFrame(err.Error()))
			continue
		}
		c.server.dispatch(ctx, c, frame)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, marshalFrame(frame)); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one validated frame.
func (s *Server) dispatch(ctx context.Context, c *client, frame *inboundFrame) {
	switch frame.Type {
	case framePing:
		c.enqueue(outboundFrame{Type: framePong, Timestamp: time.Now().UTC()})

	case frameJoinRoom:
		if err := s.hub.join(ctx, c, frame.RoomID); err != nil {
			c.enqueue(errorFrame(fmt.Sprintf("join %s: %v", frame.RoomID, err)))
		}

	case frameTyping:
		roomID := frame.RoomID
		if roomID == "" {
			roomID = GeneralRoomID
		}
		if !s.hub.isMember(c, roomID) {
			c.enqueue(errorFrame("not a member of " + roomID))
			return
		}
		s.hub.broadcast(roomID, outboundFrame{
			Type:      frameTyping,
			RoomID:    roomID,
			UserID:    c.principal.ID,
			Username:  c.principal.Username,
			IsTyping:  frame.IsTyping,
			Timestamp: time.Now().UTC(),
		}, c)

	case frameChatMessage:
		s.handleChat(ctx, c, frame)
	}
}

// handleChat routes a chat message: private messages go to the agent, room
// messages are persisted and broadcast.
func (s *Server) handleChat(ctx context.Context, c *client, frame *inboundFrame) {
	if frame.Private || frame.RoomID == "" {
		// The agent turn can take seconds; run it off the read pump so
		// pings and other frames keep flowing.
		go func() {
			result, err := s.agent.Chat(ctx, c.principal, frame.Content)
			if err != nil {
				s.logger.Error(ctx, "chat turn failed", "error", err)
				c.enqueue(errorFrame("the assistant could not respond"))
				return
			}
			c.enqueue(outboundFrame{
				Type:      frameAgentReply,
				Content:   result.Response,
				ToolsUsed: result.ToolsUsed,
				Provider:  result.Metrics.Provider,
				Timestamp: time.Now().UTC(),
			})
		}()
		return
	}

	if !s.hub.isMember(c, frame.RoomID) {
		c.enqueue(errorFrame("not a member of " + frame.RoomID))
		return
	}
	if err := s.hub.roomMessage(ctx, c, frame.RoomID, frame.Content); err != nil {
		c.enqueue(errorFrame("message not delivered"))
	}
}
