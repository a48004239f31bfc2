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

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.Message{}
	err := r.pool.QueryRow(ctx,
		`SELECT m.id, m.conversation_id, m.sender_id, COALESCE(u.full_name, ''), m.content, m.status, m.created_at
		 FROM messages m
		 LEFT JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, id,
	).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// PageBefore returns up to limit messages older than before, newest first,
// and whether more remain beyond the returned page. A zero before means "from
// the newest message". One extra row is fetched to derive hasMore without a
// second query.
func (r *MessageRepository) PageBefore(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, bool, error) {
	defer logger.DeferLogDuration("msg.PageBefore", time.Now())()
	if limit <= 0 {
		limit = 50
	}
	cursor := before
	if cursor.IsZero() {
		cursor = time.Now().UTC().Add(time.Hour)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.conversation_id, m.sender_id, COALESCE(u.full_name, ''), m.content, m.status, m.created_at
		 FROM messages m
		 LEFT JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1 AND m.created_at < $2
		 ORDER BY m.created_at DESC
		 LIMIT $3`, conversationID, cursor, limit+1,
	)
	if err != nil {
		return nil, false, fmt.Errorf("msgRepo.PageBefore query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.Status, &m.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("msgRepo.PageBefore scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("msgRepo.PageBefore rows: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	return messages, hasMore, nil
}

// MarkRead marks all messages from other senders in the conversation as read.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	defer logger.DeferLogDuration("msg.MarkRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'read'
		 WHERE conversation_id = $1 AND sender_id != $2 AND status != 'read'`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	return nil
}

// Search finds messages in the user's conversations using ILIKE. If
// conversationID is not empty, the search is limited to that conversation.
func (r *MessageRepository) Search(ctx context.Context, userID, query string, limit int, conversationID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.Search", time.Now())()
	sql := `SELECT m.id, m.conversation_id, m.sender_id, COALESCE(u.full_name, ''), m.content, m.status, m.created_at
		 FROM messages m
		 LEFT JOIN users u ON u.id = m.sender_id
		 JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = $1
		 WHERE m.content ILIKE '%' || $2 || '%'`
	args := []any{userID, query}
	if conversationID != "" {
		sql += ` AND m.conversation_id = $3`
		args = append(args, conversationID)
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY m.created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Search query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.Search scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.Search rows: %w", err)
	}
	return msgs, nil
}
