package ws

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relaychat/relay/internal/auth/jwt"
	"github.com/relaychat/relay/internal/bus"
	"github.com/relaychat/relay/internal/common/config"
	"github.com/relaychat/relay/internal/storage"
	"github.com/relaychat/relay/pkg/metrics"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		AllowedOrigin:  "https://localhost:3000",
		MaxMessageSize: 4096,
		SendQueueSize:  16,
		WriteTimeout:   time.Second,
		PongTimeout:    time.Second,
		PingInterval:   time.Hour, // keep pings out of the way
	}
}

func testJWT(t *testing.T) *jwt.Service {
	t.Helper()
	svc, err := jwt.NewService(jwt.Config{SecretKey: testSecret, Duration: time.Hour})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	return svc
}

func testClaims(userID string) *jwt.Claims {
	return &jwt.Claims{UserID: userID, Username: userID}
}

// fakeConn is an in-memory Conn. Frames pushed with push() come out of
// ReadMessage; text messages written by the session are recorded.
type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) push(data []byte) { f.inbound <- data }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("write on closed connection")
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// waitForMessage blocks until a written message satisfies the predicate.
func (f *fakeConn) waitForMessage(t *testing.T, pred func(string) bool) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, m := range f.written {
			if pred(string(m)) {
				f.mu.Unlock()
				return string(m)
			}
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no written message matched predicate")
	return ""
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, m := range f.written {
		out[i] = string(m)
	}
	return out
}

// stubStore is an in-memory storage.Store with failure injection.
type stubStore struct {
	mu    sync.Mutex
	saved []*storage.Message
	fail  bool
}

func (s *stubStore) SaveMessage(_ context.Context, from, to, content string) (*storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store unavailable")
	}
	msg := &storage.Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.saved = append(s.saved, msg)
	return msg, nil
}

func (s *stubStore) ListHistory(context.Context, string, string, int, int) ([]*storage.Message, error) {
	return nil, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// stubBus is a loopback bus: published payloads are handed straight to the
// subscribed handler, mimicking self-delivery on a single instance.
type stubBus struct {
	mu        sync.Mutex
	published [][]byte
	handler   bus.Handler
	fail      bool
}

func (b *stubBus) Publish(_ context.Context, payload []byte) error {
	b.mu.Lock()
	if b.fail {
		b.mu.Unlock()
		return errors.New("bus unreachable")
	}
	b.published = append(b.published, append([]byte(nil), payload...))
	handler := b.handler
	b.mu.Unlock()

	if handler != nil {
		handler(payload)
	}
	return nil
}

func (b *stubBus) Subscribe(_ context.Context, handler bus.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
	return nil
}

func (b *stubBus) Close() error { return nil }

func (b *stubBus) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func newTestHub(t *testing.T, store storage.Store, b bus.Bus) *Hub {
	t.Helper()
	logger := zap.NewNop()
	validator := NewValidator(logger, testJWT(t), "https://localhost:3000", "jwt")
	h := NewHub(logger, testWSConfig(), validator, store, b, metrics.New("test"))
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("hub start: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}
