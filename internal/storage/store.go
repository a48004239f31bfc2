package storage

import (
	"context"
	"time"
)

// SessionBadgeStore holds bearer sessions and cached unread-badge totals.
// Implementations: redis.Client, memory.Client (for -dev without Redis).
type SessionBadgeStore interface {
	// Sessions: token -> user ID.
	SetSession(ctx context.Context, token, userID string, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (userID string, err error)
	DeleteSession(ctx context.Context, token string) error

	// Unread badge cache. GetBadge returns ok=false on a miss; writers call
	// InvalidateBadge whenever a conversation changes.
	SetBadge(ctx context.Context, userID string, total int) error
	GetBadge(ctx context.Context, userID string) (total int, ok bool, err error)
	InvalidateBadge(ctx context.Context, userID string) error

	Close() error
}
