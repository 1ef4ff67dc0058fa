package repository

import (
	"strings"
	"time"

	"gigchat/internal/domain"
)

// ConversationRow represents the conversations table. Participants are
// stored pre-sorted so the row id and the pair id always agree.
type ConversationRow struct {
	ID                 string `gorm:"primaryKey"`
	ParticipantA       string `gorm:"index"`
	ParticipantB       string `gorm:"index"`
	LastMessagePreview string
	LastUpdatedAt      time.Time `gorm:"index"`
	PurgedAt           *time.Time
	CreatedAt          time.Time

	Members []MemberRow `gorm:"foreignKey:ConversationID"`
}

// MemberRow represents the conversation_members table: per-participant
// unread counter and visibility flag. Each participant only ever writes
// their own row, so the two counters never conflict.
type MemberRow struct {
	ConversationID string `gorm:"primaryKey"`
	UserID         string `gorm:"primaryKey"`
	UnreadCount    int
	Hidden         bool
}

// MessageRow represents the messages table.
type MessageRow struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"index:idx_messages_conv_created,priority:1"`
	SenderID       string
	ReceiverID     string `gorm:"index"`
	Text           string
	CreatedAt      time.Time `gorm:"index:idx_messages_conv_created,priority:2"`
	Read           bool
	Deleted        bool
	DeletedAt      *time.Time
	DeletedBy      string
}

// OutboxRow represents the outbox_events table. Change signals are written
// in the same transaction as the state change; a background processor
// publishes them to the bus and marks them done.
type OutboxRow struct {
	ID             string `gorm:"primaryKey"`
	Channel        string
	EventType      string
	ConversationID string
	UserID         string
	CreatedAt      time.Time
	PublishedAt    *time.Time `gorm:"index"`
	RetryCount     int
	NextAttemptAt  time.Time `gorm:"index"`
	LastError      string
}

// UserRow represents the users table. The normalized columns back the
// prefix-search indexes; the live store only supports ordered range
// queries, not substring search.
type UserRow struct {
	ID                 string `gorm:"primaryKey"`
	Name               string
	Username           string `gorm:"uniqueIndex"`
	NameNormalized     string `gorm:"index"`
	UsernameNormalized string `gorm:"index"`
	AvatarURL          string
	Role               string
	PasswordHash       string
	LastActivityAt     time.Time
	CreatedAt          time.Time
}

func (ConversationRow) TableName() string { return "conversations" }
func (MemberRow) TableName() string       { return "conversation_members" }
func (MessageRow) TableName() string      { return "messages" }
func (UserRow) TableName() string         { return "users" }
func (OutboxRow) TableName() string       { return "outbox_events" }

// Normalize lowercases and trims a value for the search indexes.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ToDomain maps a conversation row plus its member rows to the domain type.
func (r ConversationRow) ToDomain() domain.Conversation {
	c := domain.Conversation{
		ID:                 r.ID,
		Participants:       [2]string{r.ParticipantA, r.ParticipantB},
		LastMessagePreview: r.LastMessagePreview,
		LastUpdatedAt:      r.LastUpdatedAt,
		UnreadCount:        make(map[string]int, len(r.Members)),
		PurgedAt:           r.PurgedAt,
	}
	for _, m := range r.Members {
		c.UnreadCount[m.UserID] = m.UnreadCount
		if m.Hidden {
			c.HiddenFor = append(c.HiddenFor, m.UserID)
		}
	}
	return c
}

// ToDomain maps a message row to the domain type.
func (r MessageRow) ToDomain() domain.Message {
	return domain.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		ReceiverID:     r.ReceiverID,
		Text:           r.Text,
		CreatedAt:      r.CreatedAt,
		Read:           r.Read,
		Deleted:        r.Deleted,
		DeletedAt:      r.DeletedAt,
		DeletedBy:      r.DeletedBy,
	}
}

// ToDomain maps a user row to the profile type.
func (r UserRow) ToDomain() domain.Profile {
	return domain.Profile{
		ID:             r.ID,
		Name:           r.Name,
		Username:       r.Username,
		AvatarURL:      r.AvatarURL,
		Role:           r.Role,
		LastActivityAt: r.LastActivityAt,
	}
}
