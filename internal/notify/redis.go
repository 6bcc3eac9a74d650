package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/goph-share/internal/model"
)

const defaultRedisTimeout = 5 * time.Second

// RedisConfig captures the settings for establishing a Redis connection.
type RedisConfig struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// ConnectRedis initialises a Redis client and validates connectivity with a ping.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// redisClient is the subset of the Redis API the gateway uses.
type redisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisGateway publishes notifications on a per-recipient channel.
// The socket tier keeps a presence key socket:<email> while the user is connected
// and relays notifications:<email> to the open socket.
type RedisGateway struct {
	client redisClient
}

// NewRedisGateway wraps a Redis client.
func NewRedisGateway(client redisClient) *RedisGateway { return &RedisGateway{client: client} }

type pushMessage struct {
	ID           string `json:"id"`
	ActivityType string `json:"activityType"`
	SenderID     string `json:"senderId"`
	CreatedAt    string `json:"createdAt"`
}

// Send publishes n when the recipient is online.
func (g *RedisGateway) Send(ctx context.Context, n model.Notification) error {
	online, err := g.client.Exists(ctx, presenceKey(n.Recipient)).Result()
	if err != nil {
		return fmt.Errorf("presence check: %w", err)
	}
	if online == 0 {
		return nil
	}
	body, err := json.Marshal(pushMessage{
		ID:           n.ID.String(),
		ActivityType: string(n.ActivityType),
		SenderID:     n.SenderID.String(),
		CreatedAt:    n.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return g.client.Publish(ctx, channelKey(n.Recipient), body).Err()
}

func presenceKey(email string) string { return "socket:" + email }
func channelKey(email string) string  { return "notifications:" + email }

// NopGateway drops every push.
type NopGateway struct{}

// Send implements Gateway.
func (NopGateway) Send(context.Context, model.Notification) error { return nil }
