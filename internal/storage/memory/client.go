package memory

import (
	"context"
	"sync"
	"time"
)

const (
	defaultSessionTTL = 30 * 24 * time.Hour
	badgeTTL          = 10 * time.Minute
)

type item struct {
	val string
	exp time.Time
}

type badgeItem struct {
	total int
	exp   time.Time
}

// Client is an in-process SessionBadgeStore for -dev runs without Redis.
type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
	badges   map[string]badgeItem
}

func New() *Client {
	return &Client{
		sessions: make(map[string]item),
		badges:   make(map[string]badgeItem),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = item{val: userID, exp: time.Now().Add(ttl)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[token]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}

func (c *Client) SetBadge(ctx context.Context, userID string, total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.badges[userID] = badgeItem{total: total, exp: time.Now().Add(badgeTTL)}
	return nil
}

func (c *Client) GetBadge(ctx context.Context, userID string) (int, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.badges[userID]
	if !ok || time.Now().After(v.exp) {
		return 0, false, nil
	}
	return v.total, true, nil
}

func (c *Client) InvalidateBadge(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.badges, userID)
	return nil
}
