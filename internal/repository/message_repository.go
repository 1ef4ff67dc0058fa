package repository

import (
	"context"
	"errors"
	"time"

	apperrors "gigchat/pkg/errors"

	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *MessageRow) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id string) (MessageRow, error) {
	var m MessageRow
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MessageRow{}, apperrors.ErrNotFound
		}
		return MessageRow{}, err
	}
	return m, nil
}

// ListForConversation returns the newest limit messages in ascending order.
// The window tracks the tail of the log, so new messages displace the oldest
// ones instead of falling outside it.
func (r *PostgresMessageRepository) ListForConversation(ctx context.Context, conversationID string, limit int) ([]MessageRow, error) {
	var messages []MessageRow
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkReceivedRead flips every unread message addressed to userID in the
// conversation and returns how many were flipped.
func (r *PostgresMessageRepository) MarkReceivedRead(ctx context.Context, conversationID, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&MessageRow{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, userID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// SoftDelete blanks the text and stamps the deletion fields. The row is
// never removed, so history and counts stay reconcilable.
func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&MessageRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"text":       "",
			"deleted":    true,
			"deleted_at": at,
			"deleted_by": deletedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
