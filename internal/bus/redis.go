package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/relaychat/relay/internal/common/config"
)

var (
	// ErrAlreadySubscribed is returned when Subscribe is called twice.
	ErrAlreadySubscribed = errors.New("bus: already subscribed")
	// ErrClosed is returned when publishing on a closed bus.
	ErrClosed = errors.New("bus: closed")
)

// RedisBus implements Bus over a single Redis pub/sub channel shared by all
// instances. Redis pub/sub delivers a published message to every subscriber,
// including the publisher's own subscription, which gives the self-delivery
// the fabric relies on for a sender's other open connections.
type RedisBus struct {
	logger  *zap.Logger
	client  *redis.Client
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus connects to Redis and verifies the connection. A dead bus at
// startup is a configuration problem and fails construction; a bus that dies
// later only degrades live fan-out.
func NewRedisBus(logger *zap.Logger, cfg *config.BusConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBus{
		logger:  logger.Named("bus.redis"),
		client:  client,
		channel: cfg.Channel,
	}, nil
}

// Publish implements Bus.Publish
func (b *RedisBus) Publish(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %q: %w", b.channel, err)
	}
	return nil
}

// Subscribe implements Bus.Subscribe. The handler runs on a background
// goroutine until the bus is closed or ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.pubsub != nil {
		return ErrAlreadySubscribed
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	// Wait for the subscription to be confirmed so no envelope published
	// after Subscribe returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to channel %q: %w", b.channel, err)
	}
	b.pubsub = pubsub

	go b.listen(ctx, pubsub, handler)

	b.logger.Info("subscribed to fan-out channel", zap.String("channel", b.channel))
	return nil
}

func (b *RedisBus) listen(ctx context.Context, pubsub *redis.PubSub, handler Handler) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.logger.Debug("envelope received",
				zap.String("channel", msg.Channel),
				zap.Int("bytes", len(msg.Payload)))
			handler([]byte(msg.Payload))
		}
	}
}

// Close implements Bus.Close
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			b.logger.Warn("failed to close subscription", zap.Error(err))
		}
		b.pubsub = nil
	}
	return b.client.Close()
}
