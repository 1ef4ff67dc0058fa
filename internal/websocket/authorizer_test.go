package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigchat/internal/repository"
	apperrors "gigchat/pkg/errors"
)

// fakeConversations serves GetByID from a map and stubs the writes.
type fakeConversations struct {
	rows map[string]repository.ConversationRow
}

func (f *fakeConversations) Create(ctx context.Context, c *repository.ConversationRow) error {
	return nil
}

func (f *fakeConversations) GetByID(ctx context.Context, id string) (repository.ConversationRow, error) {
	row, ok := f.rows[id]
	if !ok {
		return repository.ConversationRow{}, apperrors.ErrNotFound
	}
	return row, nil
}

func (f *fakeConversations) ListForUser(ctx context.Context, userID string, limit int) ([]repository.ConversationRow, error) {
	return nil, nil
}

func (f *fakeConversations) UpdatePreview(ctx context.Context, id, preview string, at time.Time) error {
	return nil
}

func (f *fakeConversations) SetPreview(ctx context.Context, id, preview string) error { return nil }

func (f *fakeConversations) IncrementUnread(ctx context.Context, conversationID, userID string) error {
	return nil
}

func (f *fakeConversations) ResetUnread(ctx context.Context, conversationID, userID string) error {
	return nil
}

func (f *fakeConversations) SetHidden(ctx context.Context, conversationID, userID string, hidden bool) error {
	return nil
}

func (f *fakeConversations) SetPurgedAt(ctx context.Context, conversationID string, at time.Time) error {
	return nil
}

func newTestAuthorizer() *ChannelAuthorizer {
	return NewChannelAuthorizer(&fakeConversations{
		rows: map[string]repository.ConversationRow{
			"alice_bob": {ID: "alice_bob", ParticipantA: "alice", ParticipantB: "bob"},
		},
	})
}

func TestDirectoryChannelIsOwnerOnly(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()

	ok, err := a.CanSubscribe(ctx, "alice", "gigchat:directory:alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanSubscribe(ctx, "alice", "gigchat:directory:bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageChannelRequiresParticipation(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()

	ok, err := a.CanSubscribe(ctx, "alice", "gigchat:messages:alice_bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanSubscribe(ctx, "carol", "gigchat:messages:alice_bob")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanSubscribe(ctx, "alice", "gigchat:messages:missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPresenceChannelRequiresSharedConversation(t *testing.T) {
	a := newTestAuthorizer()
	ctx := context.Background()

	ok, err := a.CanSubscribe(ctx, "alice", "gigchat:presence:alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanSubscribe(ctx, "alice", "gigchat:presence:bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanSubscribe(ctx, "alice", "gigchat:presence:carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownChannelsAreRejected(t *testing.T) {
	a := newTestAuthorizer()

	ok, err := a.CanSubscribe(context.Background(), "alice", "gigchat:admin:alice")
	require.NoError(t, err)
	assert.False(t, ok)
}
