package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/schoolchat/internal/logger"
	"github.com/schoolchat/internal/model"
)

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, c *model.Conversation) error {
	defer logger.DeferLogDuration("conv.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, name, avatar_url, is_group, group_type, created_by, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		c.ID, c.Name, c.AvatarURL, c.IsGroup, string(c.GroupType), c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("convRepo.Create: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.GetByID", time.Now())()
	c := &model.Conversation{}
	var groupType *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, avatar_url, is_group, group_type, created_by, created_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.AvatarURL, &c.IsGroup, &groupType, &c.CreatedBy, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetByID: %w", err)
	}
	if groupType != nil {
		c.GroupType = model.GroupType(*groupType)
	}
	return c, nil
}

// FindDirect returns an existing direct conversation between two users, or
// ErrNotFound.
func (r *ConversationRepository) FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.FindDirect", time.Now())()
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT c.id
		 FROM conversations c
		 JOIN conversation_members ma ON ma.conversation_id = c.id AND ma.user_id = $1
		 JOIN conversation_members mb ON mb.conversation_id = c.id AND mb.user_id = $2
		 WHERE c.is_group = false
		 LIMIT 1`, userA, userB,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.FindDirect: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *ConversationRepository) AddMember(ctx context.Context, m *model.ConversationMember) error {
	defer logger.DeferLogDuration("conv.AddMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_members (conversation_id, user_id, role, joined_at, last_read_at)
		 VALUES ($1, $2, $3, $4, $4) ON CONFLICT DO NOTHING`,
		m.ConversationID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("convRepo.AddMember: %w", err)
	}
	return nil
}

func (r *ConversationRepository) RemoveMember(ctx context.Context, conversationID, userID string) error {
	defer logger.DeferLogDuration("conv.RemoveMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("convRepo.RemoveMember: %w", err)
	}
	return nil
}

func (r *ConversationRepository) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	defer logger.DeferLogDuration("conv.IsMember", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("convRepo.IsMember: %w", err)
	}
	return exists, nil
}

func (r *ConversationRepository) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	defer logger.DeferLogDuration("conv.MemberIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_members WHERE conversation_id = $1`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.MemberIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("convRepo.MemberIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.MemberIDs rows: %w", err)
	}
	return ids, nil
}

// ForUser returns the user's conversations as list summaries: participants,
// last-message preview, last activity and unread count, ordered by last
// activity descending.
func (r *ConversationRepository) ForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conv.ForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, c.avatar_url, c.is_group, c.group_type, c.created_by, c.created_at,
		        COALESCE(lm.content, ''), COALESCE(lm.created_at, c.created_at),
		        (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id AND m.sender_id != $1 AND m.created_at > cm.last_read_at)
		 FROM conversations c
		 JOIN conversation_members cm ON cm.conversation_id = c.id AND cm.user_id = $1
		 LEFT JOIN LATERAL (
		     SELECT content, created_at FROM messages
		     WHERE conversation_id = c.id
		     ORDER BY created_at DESC LIMIT 1
		 ) lm ON true
		 ORDER BY COALESCE(lm.created_at, c.created_at) DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ForUser query: %w", err)
	}
	defer rows.Close()

	convs := make([]model.Conversation, 0, 16)
	for rows.Next() {
		var c model.Conversation
		var groupType *string
		if err := rows.Scan(&c.ID, &c.Name, &c.AvatarURL, &c.IsGroup, &groupType, &c.CreatedBy, &c.CreatedAt,
			&c.LastMessage, &c.LastActivityAt, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("convRepo.ForUser scan: %w", err)
		}
		if groupType != nil {
			c.GroupType = model.GroupType(*groupType)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.ForUser rows: %w", err)
	}

	for i := range convs {
		ids, err := r.MemberIDs(ctx, convs[i].ID)
		if err != nil {
			// Degrade to a summary without participants rather than failing
			// the whole list.
			logger.Errorf("convRepo.ForUser members conv=%s: %v", convs[i].ID, err)
			continue
		}
		convs[i].ParticipantIDs = ids
	}
	return convs, nil
}

// UnreadCount counts messages created after the member's last_read_at by
// other senders.
func (r *ConversationRepository) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	defer logger.DeferLogDuration("conv.UnreadCount", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = $2
		 WHERE m.conversation_id = $1 AND m.sender_id != $2 AND m.created_at > cm.last_read_at`,
		conversationID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("convRepo.UnreadCount: %w", err)
	}
	return count, nil
}

// UpdateLastRead moves the member's read marker forward.
func (r *ConversationRepository) UpdateLastRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	defer logger.DeferLogDuration("conv.UpdateLastRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_members SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3`,
		at, conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("convRepo.UpdateLastRead: %w", err)
	}
	return nil
}

// TotalUnread sums unread counts across all of the user's conversations, for
// the global badge.
func (r *ConversationRepository) TotalUnread(ctx context.Context, userID string) (int, error) {
	defer logger.DeferLogDuration("conv.TotalUnread", time.Now())()
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = $1
		 WHERE m.sender_id != $1 AND m.created_at > cm.last_read_at`, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("convRepo.TotalUnread: %w", err)
	}
	return total, nil
}
