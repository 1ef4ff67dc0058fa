package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openMessageDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&MessageRow{}))
	return db
}

func TestListForConversationKeepsNewestMessages(t *testing.T) {
	db := openMessageDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 60; i++ {
		require.NoError(t, repo.Create(ctx, &MessageRow{
			ID:             fmt.Sprintf("m%02d", i),
			ConversationID: "alice_bob",
			SenderID:       "alice",
			ReceiverID:     "bob",
			Text:           fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	rows, err := repo.ListForConversation(ctx, "alice_bob", 50)
	require.NoError(t, err)
	require.Len(t, rows, 50)

	// The window holds the tail of the log in ascending order, so the most
	// recent message is always present.
	assert.Equal(t, "m11", rows[0].ID)
	assert.Equal(t, "m60", rows[49].ID)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i-1].CreatedAt.Before(rows[i].CreatedAt))
	}
}

func TestListForConversationShortLog(t *testing.T) {
	db := openMessageDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &MessageRow{ID: "m1", ConversationID: "alice_bob", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &MessageRow{ID: "m2", ConversationID: "alice_bob", CreatedAt: base.Add(time.Second)}))

	rows, err := repo.ListForConversation(ctx, "alice_bob", 50)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "m1", rows[0].ID)
	assert.Equal(t, "m2", rows[1].ID)
}
