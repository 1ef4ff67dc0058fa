package repository

import (
	"context"
	"errors"
	"time"

	apperrors "gigchat/pkg/errors"

	"gorm.io/gorm"
)

// prefixUpperBound is appended to a normalized prefix to form the exclusive
// upper bound of a lexicographic range query.
const prefixUpperBound = "\uf8ff"

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *UserRow) error {
	u.NameNormalized = Normalize(u.Name)
	u.UsernameNormalized = Normalize(u.Username)
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (UserRow, error) {
	var u UserRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserRow{}, apperrors.ErrNotFound
		}
		return UserRow{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (UserRow, error) {
	var u UserRow
	err := r.db.WithContext(ctx).
		Where("username_normalized = ?", Normalize(username)).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserRow{}, apperrors.ErrNotFound
		}
		return UserRow{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]UserRow, error) {
	return r.rangeQuery(ctx, "username_normalized", prefix, limit)
}

func (r *PostgresUserRepository) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]UserRow, error) {
	return r.rangeQuery(ctx, "name_normalized", prefix, limit)
}

func (r *PostgresUserRepository) rangeQuery(ctx context.Context, column, prefix string, limit int) ([]UserRow, error) {
	p := Normalize(prefix)
	var users []UserRow
	err := r.db.WithContext(ctx).
		Where(column+" >= ? AND "+column+" < ?", p, p+prefixUpperBound).
		Order(column + " ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PostgresUserRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&UserRow{}).
		Where("id = ?", id).
		Update("last_activity_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
