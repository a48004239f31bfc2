package ws

import "github.com/schoolchat/internal/model"

type EventType string

const (
	EventNewMessage          EventType = "new_message"
	EventMessageRead         EventType = "message_read"
	EventTyping              EventType = "typing"
	EventUnreadCount         EventType = "unread_count"
	EventConversationCreated EventType = "conversation_created"
	EventError               EventType = "error"
)

// IncomingEvent is what the client sends to the server.
type IncomingEvent struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content,omitempty"`
}

// OutgoingEvent is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewMessagePayload carries a persisted message to conversation members.
type NewMessagePayload struct {
	Message model.Message `json:"message"`
}

// TypingPayload is broadcast while a user is typing.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// MessageReadPayload is broadcast when a member reads a conversation.
type MessageReadPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// UnreadCountPayload pushes the new aggregate badge total to one user.
type UnreadCountPayload struct {
	Total int `json:"total"`
}
