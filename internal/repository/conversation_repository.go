package repository

import (
	"context"
	"errors"
	"time"

	apperrors "gigchat/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *ConversationRow) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id string) (ConversationRow, error) {
	var c ConversationRow
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ConversationRow{}, apperrors.ErrNotFound
		}
		return ConversationRow{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]ConversationRow, error) {
	var conversations []ConversationRow
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_updated_at DESC").
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *PostgresConversationRepository) UpdatePreview(ctx context.Context, id, preview string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&ConversationRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_preview": preview,
			"last_updated_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetPreview rewrites the preview without touching last_updated_at. Used
// when the latest message is unsent: the marker replaces the text but the
// conversation keeps its place in the directory ordering.
func (r *PostgresConversationRepository) SetPreview(ctx context.Context, id, preview string) error {
	res := r.db.WithContext(ctx).
		Model(&ConversationRow{}).
		Where("id = ?", id).
		Update("last_message_preview", preview)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) IncrementUnread(ctx context.Context, conversationID, userID string) error {
	res := r.db.WithContext(ctx).
		Model(&MemberRow{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("unread_count", gorm.Expr("unread_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) ResetUnread(ctx context.Context, conversationID, userID string) error {
	res := r.db.WithContext(ctx).
		Model(&MemberRow{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("unread_count", 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) SetHidden(ctx context.Context, conversationID, userID string, hidden bool) error {
	res := r.db.WithContext(ctx).
		Model(&MemberRow{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("hidden", hidden)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetPurgedAt only ever moves the cutoff forward, which keeps re-purging
// idempotent.
func (r *PostgresConversationRepository) SetPurgedAt(ctx context.Context, conversationID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&ConversationRow{}).
		Where("id = ? AND (purged_at IS NULL OR purged_at < ?)", conversationID, at).
		Update("purged_at", at)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

// EnsureMembers inserts the two member rows for a new conversation,
// ignoring duplicates so conversation creation stays idempotent.
func EnsureMembers(ctx context.Context, db *gorm.DB, conversationID string, userIDs [2]string) error {
	rows := []MemberRow{
		{ConversationID: conversationID, UserID: userIDs[0]},
		{ConversationID: conversationID, UserID: userIDs[1]},
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}
