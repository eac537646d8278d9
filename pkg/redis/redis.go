package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/fraudscore/pkg/config"
)

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client and verifies connectivity
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// CountInRange counts sorted-set members whose score lies in [from, to].
// Scores are unix timestamps, so this is a trailing-window event count.
func (c *Client) CountInRange(ctx context.Context, key string, from, to time.Time) (int64, error) {
	return c.ZCount(ctx, key,
		formatUnix(from),
		formatUnix(to),
	).Result()
}

// MembersInRange returns sorted-set member values whose score lies in
// [from, to]
func (c *Client) MembersInRange(ctx context.Context, key string, from, to time.Time) ([]string, error) {
	return c.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatUnix(from),
		Max: formatUnix(to),
	}).Result()
}

// IsMember checks set membership
func (c *Client) IsMember(ctx context.Context, key, member string) (bool, error) {
	return c.SIsMember(ctx, key, member).Result()
}

// SetSize returns the cardinality of a set
func (c *Client) SetSize(ctx context.Context, key string) (int64, error) {
	return c.SCard(ctx, key).Result()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}

func formatUnix(t time.Time) string {
	return fmt.Sprintf("%d", t.Unix())
}
