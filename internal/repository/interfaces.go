package repository

import (
	"context"
	"time"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *ConversationRow) error
	GetByID(ctx context.Context, id string) (ConversationRow, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]ConversationRow, error)
	UpdatePreview(ctx context.Context, id, preview string, at time.Time) error
	SetPreview(ctx context.Context, id, preview string) error
	IncrementUnread(ctx context.Context, conversationID, userID string) error
	ResetUnread(ctx context.Context, conversationID, userID string) error
	SetHidden(ctx context.Context, conversationID, userID string, hidden bool) error
	SetPurgedAt(ctx context.Context, conversationID string, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *MessageRow) error
	GetByID(ctx context.Context, id string) (MessageRow, error)
	ListForConversation(ctx context.Context, conversationID string, limit int) ([]MessageRow, error)
	MarkReceivedRead(ctx context.Context, conversationID, userID string) (int64, error)
	SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error
}

type UserRepository interface {
	Create(ctx context.Context, u *UserRow) error
	GetByID(ctx context.Context, id string) (UserRow, error)
	GetByUsername(ctx context.Context, username string) (UserRow, error)
	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]UserRow, error)
	SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]UserRow, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, row *OutboxRow) error
	PendingBatch(ctx context.Context, limit int, now time.Time) ([]OutboxRow, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, nextAttempt time.Time, lastError string) error
}
