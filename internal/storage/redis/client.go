package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Badge totals are cached briefly; the ws hub invalidates on every message
// or read event, the TTL only bounds staleness after missed invalidations.
const (
	DefaultSessionTTL = 30 * 24 * time.Hour
	badgeTTL          = 10 * time.Minute
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetSession stores token -> userID under session:{token}.
func (c *Client) SetSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return c.cli.Set(ctx, "session:"+token, userID, ttl).Err()
}

// GetSession returns the user ID for a token, or "" when the token is unknown.
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, "session:"+token).Err()
}

func (c *Client) SetBadge(ctx context.Context, userID string, total int) error {
	return c.cli.Set(ctx, "badge:"+userID, total, badgeTTL).Err()
}

func (c *Client) GetBadge(ctx context.Context, userID string) (int, bool, error) {
	val, err := c.cli.Get(ctx, "badge:"+userID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (c *Client) InvalidateBadge(ctx context.Context, userID string) error {
	return c.cli.Del(ctx, "badge:"+userID).Err()
}
