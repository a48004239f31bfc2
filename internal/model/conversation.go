package model

import "time"

type GroupType string

const (
	GroupTypeClass   GroupType = "class"
	GroupTypeSubject GroupType = "subject"
	GroupTypeStaff   GroupType = "staff"
)

type Conversation struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	IsGroup   bool       `json:"is_group"`
	GroupType GroupType  `json:"group_type,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt *time.Time `json:"created_at,omitempty"`

	// Summary fields filled for list views.
	ParticipantIDs []string  `json:"participant_ids,omitempty"`
	LastMessage    string    `json:"last_message,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
	UnreadCount    int       `json:"unread_count"`
}

// HasUnread is derived from UnreadCount and never stored separately.
func (c Conversation) HasUnread() bool {
	return c.UnreadCount > 0
}

// ConversationMember is the membership row; LastReadAt drives unread counts.
type ConversationMember struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
	LastReadAt     time.Time `json:"last_read_at"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"` // student, teacher, parent, admin
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}
