package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type PostgresOutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) Enqueue(ctx context.Context, row *OutboxRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if row.NextAttemptAt.IsZero() {
		row.NextAttemptAt = row.CreatedAt
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *PostgresOutboxRepository) PendingBatch(ctx context.Context, limit int, now time.Time) ([]OutboxRow, error) {
	var rows []OutboxRow
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND next_attempt_at <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostgresOutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&OutboxRow{}).
		Where("id = ?", id).
		Update("published_at", at).Error
}

func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id string, nextAttempt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&OutboxRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"next_attempt_at": nextAttempt,
			"last_error":      lastError,
		}).Error
}
