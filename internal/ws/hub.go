// Package ws implements the real-time core of the chat fabric: the
// handshake validator, the per-instance connection registry, the connection
// session state machine and the hub that ties them to the fan-out bus.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relaychat/relay/internal/auth/jwt"
	"github.com/relaychat/relay/internal/bus"
	"github.com/relaychat/relay/internal/common/config"
	"github.com/relaychat/relay/internal/storage"
	"github.com/relaychat/relay/pkg/metrics"
)

// Hub composes the registry, validator, store and bus into one instance of
// the messaging fabric. Each process runs exactly one hub.
type Hub struct {
	logger    *zap.Logger
	registry  *Registry
	validator *Validator
	store     storage.Store
	bus       bus.Bus
	metrics   *metrics.Metrics
	wsCfg     config.WebSocketConfig
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewHub creates a hub. Start must be called before connections are
// accepted so the bus subscription is live first.
func NewHub(logger *zap.Logger, wsCfg config.WebSocketConfig, validator *Validator, store storage.Store, b bus.Bus, m *metrics.Metrics) *Hub {
	return &Hub{
		logger:    logger.Named("ws.hub"),
		registry:  NewRegistry(),
		validator: validator,
		store:     store,
		bus:       b,
		metrics:   m,
		wsCfg:     wsCfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			// The validator has already matched the Origin header against
			// the single allowed origin before the upgrade is attempted.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
	}
}

// Start subscribes the hub to the shared bus channel. The subscription runs
// for the life of the instance and receives every envelope published by any
// instance, this one included.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, h.dispatch)
}

// RegisterRoutes mounts the websocket endpoint on the router.
func (h *Hub) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleConnection)
}

// HandleConnection is the gin handler for new connection attempts. A
// rejected handshake terminates the attempt with a bare 403: the reason is
// logged but never disclosed to the peer.
func (h *Hub) HandleConnection(c *gin.Context) {
	r := c.Request

	claims, err := h.validator.Validate(r.TLS != nil, r.Header.Get("Origin"), r.Header.Get("Cookie"))
	if err != nil {
		h.metrics.HandshakeRejected()
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		// Upgrade has already written its own response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.startSession(conn, claims)
}

// startSession registers a validated connection and starts its pumps.
func (h *Hub) startSession(conn Conn, claims *jwt.Claims) *Session {
	s := newSession(h, conn, claims)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.sessions[s.connID] = s
	h.mu.Unlock()

	s.start()
	return s
}

// dispatch handles one envelope received from the bus: it looks up the
// local connections of both the sender and the recipient and offers the
// payload to each. Identities with no local connections cost nothing beyond
// the lookup miss, and each per-connection enqueue is independent so one
// full queue never blocks a sibling.
func (h *Hub) dispatch(payload []byte) {
	var env storage.Message
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Error("dropping undecodable envelope",
			zap.Int("bytes", len(payload)),
			zap.Error(err))
		return
	}

	h.deliver(env.From, payload)
	if env.To != env.From {
		h.deliver(env.To, payload)
	}
}

func (h *Hub) deliver(userID string, payload []byte) {
	for _, sender := range h.registry.ConnectionsFor(userID) {
		if sender.Enqueue(payload) {
			h.metrics.Delivered()
		} else {
			h.metrics.Dropped()
		}
	}
}

func (h *Hub) forget(connID string) {
	h.mu.Lock()
	delete(h.sessions, connID)
	h.mu.Unlock()
}

// Close shuts every live session down. The bus and store are owned by the
// caller and closed separately.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
