package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cycleLockKey = "walletgate:cycle-leader"

// releaseScript deletes the lock only if this instance still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client wraps Redis operations for the scheduler leader lock.
type Client struct {
	rdb      *redis.Client
	instance string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, instance: uuid.NewString()}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireCycleLock takes the cross-instance cycle lock. Returns false when
// another instance holds it.
func (c *Client) AcquireCycleLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, cycleLockKey, c.instance, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire cycle lock: %w", err)
	}
	return ok, nil
}

// ReleaseCycleLock releases the cycle lock if this instance still holds it.
func (c *Client) ReleaseCycleLock(ctx context.Context) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{cycleLockKey}, c.instance).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release cycle lock: %w", err)
	}
	return nil
}
