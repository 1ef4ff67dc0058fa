package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigchat/internal/backend/backendtest"
	"gigchat/internal/domain"
	apperrors "gigchat/pkg/errors"
	"gigchat/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewNop()
}

func msg(id, sender, receiver, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: "alice_bob",
		SenderID:       sender,
		ReceiverID:     receiver,
		Text:           text,
		CreatedAt:      at,
	}
}

func aliceBob(unread int) domain.Conversation {
	return domain.Conversation{
		ID:           "alice_bob",
		Participants: [2]string{"alice", "bob"},
		UnreadCount:  map[string]int{"alice": unread},
	}
}

func TestActivateDeliversInitialLogOrdered(t *testing.T) {
	fake := backendtest.New()
	now := time.Now()
	fake.Messages["alice_bob"] = []domain.Message{
		msg("m2", "bob", "alice", "second", now),
		msg("m1", "alice", "bob", "first", now.Add(-time.Minute)),
	}

	s := New(fake, testLogger(), nil)
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))

	snap := s.Snapshot()
	assert.Equal(t, "alice_bob", snap.ConversationID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "m1", snap.Messages[0].ID)
	assert.Equal(t, "m2", snap.Messages[1].ID)
	assert.Equal(t, "bob", s.OtherParticipant())
}

func TestActivateMarksReadOnlyWhenUnread(t *testing.T) {
	fake := backendtest.New()
	s := New(fake, testLogger(), nil)

	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(3)))
	assert.Equal(t, []string{"alice_bob"}, fake.MarkReadCalls)

	s.Deactivate()
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))
	assert.Equal(t, []string{"alice_bob"}, fake.MarkReadCalls)
}

func TestPurgeCutoffHidesOlderMessages(t *testing.T) {
	fake := backendtest.New()
	now := time.Now()
	cutoff := now.Add(-30 * time.Minute)
	fake.Messages["alice_bob"] = []domain.Message{
		msg("m1", "alice", "bob", "before purge", now.Add(-time.Hour)),
		msg("m2", "bob", "alice", "after purge", now),
	}

	conversation := aliceBob(0)
	conversation.PurgedAt = &cutoff

	s := New(fake, testLogger(), nil)
	require.NoError(t, s.Activate(context.Background(), "alice", conversation))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "m2", snap.Messages[0].ID)
}

func TestPushRefreshesLog(t *testing.T) {
	fake := backendtest.New()
	var updates []Snapshot
	s := New(fake, testLogger(), func(snap Snapshot) { updates = append(updates, snap) })
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))

	fake.PushMessages("alice_bob", []domain.Message{
		msg("m1", "bob", "alice", "hello", time.Now()),
	})

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "hello", snap.Messages[0].Text)
	assert.NotEmpty(t, updates)
}

func TestSendRequiresTextAndActiveConversation(t *testing.T) {
	fake := backendtest.New()
	s := New(fake, testLogger(), nil)

	_, err := s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))
	_, err = s.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSendAppendsConfirmedMessage(t *testing.T) {
	fake := backendtest.New()
	s := New(fake, testLogger(), nil)
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))

	sent, err := s.Send(context.Background(), "hello bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", sent.SenderID)
	assert.Equal(t, "bob", sent.ReceiverID)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, sent.ID, snap.Messages[0].ID)
}

func TestSendFailureLeavesLogIntact(t *testing.T) {
	fake := backendtest.New()
	fake.SendErr = apperrors.ErrBackendUnavailable
	s := New(fake, testLogger(), nil)
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))

	_, err := s.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.Empty(t, s.Snapshot().Messages)
}

func TestUnsendRejectsForeignAndUnknownMessages(t *testing.T) {
	fake := backendtest.New()
	fake.Messages["alice_bob"] = []domain.Message{
		msg("m1", "bob", "alice", "from bob", time.Now()),
	}
	s := New(fake, testLogger(), nil)
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))

	assert.ErrorIs(t, s.Unsend(context.Background(), "m1"), apperrors.ErrNotSender)
	assert.ErrorIs(t, s.Unsend(context.Background(), "missing"), apperrors.ErrNotFound)
	assert.Empty(t, fake.UnsendCalls)
}

func TestUnsendMarksOwnMessageDeleted(t *testing.T) {
	fake := backendtest.New()
	fake.Messages["alice_bob"] = []domain.Message{
		msg("m1", "alice", "bob", "typo", time.Now()),
	}
	s := New(fake, testLogger(), nil)
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))

	require.NoError(t, s.Unsend(context.Background(), "m1"))
	assert.Equal(t, []string{"m1"}, fake.UnsendCalls)

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.True(t, snap.Messages[0].Deleted)
	assert.Empty(t, snap.Messages[0].Text)
	assert.Equal(t, "alice", snap.Messages[0].DeletedBy)
}

func TestSwitchingConversationsCancelsPrevious(t *testing.T) {
	fake := backendtest.New()
	carol := domain.Conversation{
		ID:           "alice_carol",
		Participants: [2]string{"alice", "carol"},
	}
	s := New(fake, testLogger(), nil)

	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))
	require.NoError(t, s.Activate(context.Background(), "alice", carol))
	assert.Equal(t, 1, fake.ActiveMessageSubs())
	assert.Equal(t, "alice_carol", s.ConversationID())

	// A late push for the abandoned conversation must not leak through.
	fake.PushMessages("alice_bob", []domain.Message{
		msg("m1", "bob", "alice", "stale", time.Now()),
	})
	assert.Empty(t, s.Snapshot().Messages)
}

func TestDeactivateClearsEverything(t *testing.T) {
	fake := backendtest.New()
	fake.Messages["alice_bob"] = []domain.Message{
		msg("m1", "bob", "alice", "hi", time.Now()),
	}
	s := New(fake, testLogger(), nil)
	require.NoError(t, s.Activate(context.Background(), "alice", aliceBob(0)))

	s.Deactivate()
	assert.Equal(t, 0, fake.ActiveMessageSubs())
	snap := s.Snapshot()
	assert.Empty(t, snap.ConversationID)
	assert.Empty(t, snap.Messages)
}
