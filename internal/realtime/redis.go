package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient creates a Redis client from a URL and performs a health check
func NewRedisClient(ctx context.Context, url string) (*goRedis.Client, error) {
	opts, err := goRedis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisHub shares changes between processes over a Redis pub/sub channel.
// Published changes travel through Redis and come back to local
// subscribers the same way as changes from other processes.
type RedisHub struct {
	client  *goRedis.Client
	channel string
	local   *MemoryHub
	logger  *zap.Logger
}

// NewRedisHub creates a hub on channel. Call Run to start receiving.
func NewRedisHub(client *goRedis.Client, channel string, logger *zap.Logger) *RedisHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisHub{
		client:  client,
		channel: channel,
		local:   NewMemoryHub(),
		logger:  logger.Named("realtime"),
	}
}

// Publish sends change to every process listening on the channel
func (h *RedisHub) Publish(ctx context.Context, change Change) error {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := h.client.Publish(ctx, h.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe registers a local subscriber
func (h *RedisHub) Subscribe(filter Filter) (<-chan Change, func()) {
	return h.local.Subscribe(filter)
}

// Run receives changes from Redis until ctx is cancelled
func (h *RedisHub) Run(ctx context.Context) error {
	pubsub := h.client.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", h.channel, err)
	}
	h.logger.Info("Listening for changes", zap.String("channel", h.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				h.logger.Warn("Dropping malformed change", zap.Error(err))
				continue
			}
			h.local.deliver(change)
		}
	}
}

// Close ends local subscriptions and closes the Redis client
func (h *RedisHub) Close() error {
	h.local.Close()
	return h.client.Close()
}
