package backend

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gigchat/internal/domain"
	"gigchat/internal/repository"
	apperrors "gigchat/pkg/errors"
	"gigchat/pkg/logger"
)

func openStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory store.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&repository.UserRow{},
		&repository.ConversationRow{},
		&repository.MemberRow{},
		&repository.MessageRow{},
		&repository.OutboxRow{},
	))
	return db
}

func newLiveStore(t *testing.T) (*LiveBackend, *gorm.DB) {
	t.Helper()
	db := openStoreDB(t)
	return NewLiveBackend(db, nil, nil, logger.NewNop()), db
}

func seedMessage(t *testing.T, db *gorm.DB, id, convID, sender, receiver, text string, at time.Time) {
	t.Helper()
	require.NoError(t, repository.NewMessageRepository(db).Create(context.Background(), &repository.MessageRow{
		ID:             id,
		ConversationID: convID,
		SenderID:       sender,
		ReceiverID:     receiver,
		Text:           text,
		CreatedAt:      at,
	}))
}

func conversationFor(t *testing.T, b *LiveBackend, userID, convID string) domain.Conversation {
	t.Helper()
	conversations, err := b.ListConversations(context.Background(), userID, 0)
	require.NoError(t, err)
	for _, c := range conversations {
		if c.ID == convID {
			return c
		}
	}
	t.Fatalf("conversation %s not listed for %s", convID, userID)
	return domain.Conversation{}
}

func TestSendMessageUpdatesDirectoryState(t *testing.T) {
	b, _ := newLiveStore(t)
	ctx := context.Background()

	convID, err := b.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	msg, err := b.SendMessage(ctx, "alice", "bob", "  milestone draft attached  ")
	require.NoError(t, err)
	assert.Equal(t, "milestone draft attached", msg.Text)
	assert.Equal(t, convID, msg.ConversationID)

	conv := conversationFor(t, b, "bob", convID)
	assert.Equal(t, 1, conv.UnreadFor("bob"))
	assert.Equal(t, 0, conv.UnreadFor("alice"))
	assert.Equal(t, "milestone draft attached", conv.LastMessagePreview)

	_, err = b.SendMessage(ctx, "alice", "bob", "second")
	require.NoError(t, err)
	assert.Equal(t, 2, conversationFor(t, b, "bob", convID).UnreadFor("bob"))
}

func TestMarkReadFlipsFlagsAndCounterTogether(t *testing.T) {
	b, _ := newLiveStore(t)
	ctx := context.Background()

	convID, err := b.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = b.SendMessage(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	_, err = b.SendMessage(ctx, "alice", "bob", "two")
	require.NoError(t, err)

	require.ErrorIs(t, b.MarkRead(ctx, "carol", convID), apperrors.ErrNotParticipant)

	require.NoError(t, b.MarkRead(ctx, "bob", convID))

	messages, err := b.GetMessages(ctx, "bob", convID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	for _, m := range messages {
		assert.True(t, m.Read, "message %s still unread", m.ID)
	}
	assert.Equal(t, 0, conversationFor(t, b, "bob", convID).UnreadFor("bob"))
}

func TestGetMessagesReturnsNewestWindow(t *testing.T) {
	b, db := newLiveStore(t)
	ctx := context.Background()

	convID, err := b.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, db, "m1", convID, "alice", "bob", "oldest", base)
	seedMessage(t, db, "m2", convID, "bob", "alice", "older", base.Add(time.Minute))
	seedMessage(t, db, "m3", convID, "alice", "bob", "mid", base.Add(2*time.Minute))
	seedMessage(t, db, "m4", convID, "bob", "alice", "newer", base.Add(3*time.Minute))
	seedMessage(t, db, "m5", convID, "alice", "bob", "newest", base.Add(4*time.Minute))

	messages, err := b.GetMessages(ctx, "alice", convID, 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m3", messages[0].ID)
	assert.Equal(t, "m4", messages[1].ID)
	assert.Equal(t, "m5", messages[2].ID)
}

func TestUnsendLatestRewritesPreview(t *testing.T) {
	b, db := newLiveStore(t)
	ctx := context.Background()

	convID, err := b.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, db, "m1", convID, "alice", "bob", "first", base)
	seedMessage(t, db, "m2", convID, "alice", "bob", "second", base.Add(time.Minute))
	require.NoError(t, repository.NewConversationRepository(db).UpdatePreview(ctx, convID, "second", base.Add(time.Minute)))

	require.NoError(t, b.Unsend(ctx, "alice", "m2"))

	conv := conversationFor(t, b, "alice", convID)
	assert.Equal(t, domain.UnsentPreview, conv.LastMessagePreview)

	messages, err := b.GetMessages(ctx, "alice", convID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.True(t, messages[1].Deleted)
	assert.Equal(t, "alice", messages[1].DeletedBy)

	// Unsending an older message leaves the preview alone.
	require.NoError(t, b.Unsend(ctx, "alice", "m1"))
	assert.Equal(t, domain.UnsentPreview, conversationFor(t, b, "alice", convID).LastMessagePreview)
}

func TestStartConversationClearsHiddenFlag(t *testing.T) {
	b, _ := newLiveStore(t)
	ctx := context.Background()

	convID, err := b.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, b.HideForMe(ctx, "alice", convID))
	assert.True(t, conversationFor(t, b, "alice", convID).IsHiddenFor("alice"))

	// Reopening the pair resurfaces the conversation for the opener only.
	again, err := b.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, convID, again)

	conv := conversationFor(t, b, "alice", convID)
	assert.False(t, conv.IsHiddenFor("alice"))
	assert.False(t, conv.IsHiddenFor("bob"))
}
