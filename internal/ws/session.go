package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/relaychat/relay/internal/auth/jwt"
	"github.com/relaychat/relay/pkg/trace"
)

// Greeting is pushed to the peer immediately after a session opens.
const Greeting = "Hi, you're connected to our websocket server for chat app."

// State is the lifecycle state of a connection session.
type State int32

const (
	StateHandshaking State = iota
	StateOpen
	StateClosing
	StateClosed
)

// Conn is the subset of *websocket.Conn a session drives. Tests substitute
// fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var chatTracer = trace.Tracer("relay/ws")

// Session owns one client connection from accept to close. It reads inbound
// chat frames, persists them, publishes the resulting envelope on the bus,
// and writes outbound envelopes queued by the hub's fan-out.
type Session struct {
	logger *zap.Logger
	hub    *Hub
	conn   Conn

	connID   string
	userID   string
	username string

	send      chan []byte
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(hub *Hub, conn Conn, claims *jwt.Claims) *Session {
	s := &Session{
		logger:   hub.logger.Named("ws.session"),
		hub:      hub,
		conn:     conn,
		connID:   uuid.NewString(),
		userID:   claims.UserID,
		username: claims.Username,
		send:     make(chan []byte, hub.wsCfg.SendQueueSize),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateHandshaking))
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// start transitions the session to Open: it registers the connection under
// its user identity, pushes the greeting and starts both pumps.
func (s *Session) start() {
	s.state.Store(int32(StateOpen))
	s.hub.registry.Register(s.userID, s.connID, s)
	s.hub.metrics.ConnOpened()
	s.logger.Debug("connection open",
		zap.String("user", s.userID),
		zap.String("conn", s.connID))

	s.Enqueue([]byte(Greeting))

	go s.writePump()
	go s.readPump()
}

// Enqueue implements Sender. It offers a payload to the outbound queue
// without ever blocking; a full queue drops the payload so one stalled
// client cannot hold up fan-out to its siblings.
func (s *Session) Enqueue(payload []byte) bool {
	if s.State() != StateOpen {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		s.logger.Warn("send queue full, dropping envelope",
			zap.String("user", s.userID),
			zap.String("conn", s.connID))
		return false
	}
}

func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(s.hub.wsCfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.hub.wsCfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.hub.wsCfg.PongTimeout))
	})

	for {
		// Binary and text frames are both accepted; the payload is
		// normalized to text during parsing.
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}
		s.handleFrame(data)
	}
}

// handleFrame processes one inbound chat frame: parse, persist, publish.
// A malformed frame is dropped and the connection stays open. A persistence
// failure is logged and the frame is not published. A publish failure is
// logged only: the message is already durable, so only live delivery to
// other instances degrades.
func (s *Session) handleFrame(data []byte) {
	f, err := parseFrame(data)
	if err != nil {
		s.hub.metrics.FrameMalformed()
		s.logger.Warn("dropping malformed frame",
			zap.String("user", s.userID),
			zap.String("conn", s.connID),
			zap.Int("bytes", len(data)))
		return
	}

	s.logger.Debug("chat frame received",
		zap.String("from", s.userID),
		zap.String("to", f.To))

	scope := chatTracer.Start(context.Background(), "chat.message").WithAttrs(
		attribute.String("chat.from", s.userID),
		attribute.String("chat.to", f.To),
		attribute.Int("chat.bytes", len(f.Content)),
	)
	defer scope.End()

	msg, err := s.hub.store.SaveMessage(scope.Ctx, s.userID, f.To, f.Content)
	if err != nil {
		s.hub.metrics.PersistError()
		s.logger.Error("failed to persist message",
			zap.String("from", s.userID),
			zap.String("to", f.To),
			zap.Error(err))
		return
	}
	s.hub.metrics.MessagePersisted()

	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal envelope", zap.Error(err))
		return
	}

	if err := s.hub.bus.Publish(scope.Ctx, payload); err != nil {
		s.hub.metrics.PublishError()
		s.logger.Error("bus publish failed, live fan-out degraded",
			zap.String("id", msg.ID),
			zap.Error(err))
		return
	}
	s.hub.metrics.Published()
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.hub.wsCfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.wsCfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("write failed",
					zap.String("conn", s.connID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.wsCfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.wsCfg.WriteTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// close runs the Closing → Closed transition exactly once: unregister,
// release the transport, stop both pumps. Safe to call from either pump,
// the hub, or all of them.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.hub.registry.Unregister(s.userID, s.connID)
		s.hub.metrics.ConnClosed()
		s.hub.forget(s.connID)
		close(s.done)
		_ = s.conn.Close()
		s.state.Store(int32(StateClosed))
		s.logger.Debug("connection closed",
			zap.String("user", s.userID),
			zap.String("conn", s.connID))
	})
}

func (s *Session) logReadError(err error) {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		s.logger.Debug("peer disconnected",
			zap.String("conn", s.connID),
			zap.Error(err))
		return
	}
	if s.State() != StateOpen {
		// expected: the transport was released under the reader
		return
	}
	s.logger.Warn("read error",
		zap.String("conn", s.connID),
		zap.Error(err))
}
