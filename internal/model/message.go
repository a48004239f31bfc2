package model

import "time"

type MessageStatus string

const (
	MessageStatusSent MessageStatus = "sent"
	MessageStatusRead MessageStatus = "read"
)

// Message is an immutable value: a changed read-state produces a new instance
// (see WithRead), a message is never mutated in place.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	SenderName     string        `json:"sender_name,omitempty"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	Mine           bool          `json:"mine"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Read reports whether the message has been read by its recipients.
func (m Message) Read() bool {
	return m.Status == MessageStatusRead
}

// WithRead returns a copy of the message with the read status applied.
func (m Message) WithRead() Message {
	m.Status = MessageStatusRead
	return m
}
