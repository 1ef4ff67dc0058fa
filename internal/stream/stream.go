package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gigchat/internal/backend"
	"gigchat/internal/domain"
	apperrors "gigchat/pkg/errors"
	"gigchat/pkg/logger"
)

// Snapshot is the rendered view of the active conversation's log plus the
// last stream error, kept alongside last-known-good messages.
type Snapshot struct {
	ConversationID string
	Messages       []domain.Message
	Err            error
}

type UpdateFunc func(Snapshot)

// Stream owns the live, cutoff-filtered, ordered message log for exactly
// one active conversation. Switching conversations always disposes the
// previous subscription before creating the next, so at most one is live.
type Stream struct {
	backend  backend.Backend
	log      *logger.Logger
	onUpdate UpdateFunc

	mu             sync.Mutex
	userID         string
	conversationID string
	otherID        string
	purgedAt       *time.Time
	sub            backend.Subscription
	messages       []domain.Message
	lastErr        error
	sending        bool
}

func New(b backend.Backend, log *logger.Logger, onUpdate UpdateFunc) *Stream {
	if onUpdate == nil {
		onUpdate = func(Snapshot) {}
	}
	return &Stream{backend: b, log: log, onUpdate: onUpdate}
}

// Activate switches the stream to conversation. The previous subscription
// is cancelled first; unread messages addressed to the user are marked read
// together with the counter reset before the log subscription starts.
func (s *Stream) Activate(ctx context.Context, userID string, conversation domain.Conversation) error {
	s.Deactivate()

	if conversation.UnreadFor(userID) > 0 {
		if err := s.backend.MarkRead(ctx, userID, conversation.ID); err != nil {
			s.log.Logger.Warn("mark read failed",
				zap.String("conversation_id", conversation.ID), zap.Error(err))
		}
	}

	conversationID := conversation.ID

	// Record the target first: the subscription delivers its initial
	// snapshot synchronously and apply drops results for other
	// conversations.
	s.mu.Lock()
	s.userID = userID
	s.conversationID = conversationID
	s.otherID = conversation.Other(userID)
	s.purgedAt = conversation.PurgedAt
	s.mu.Unlock()

	sub, err := s.backend.SubscribeMessages(ctx, userID, conversationID, 0, func(messages []domain.Message, err error) {
		s.apply(conversationID, messages, err)
	})
	if err != nil {
		s.Deactivate()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Deactivate tears down the active subscription and clears the log.
func (s *Stream) Deactivate() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.userID = ""
	s.conversationID = ""
	s.otherID = ""
	s.purgedAt = nil
	s.messages = nil
	s.lastErr = nil
	s.sending = false
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// apply ingests a log snapshot for conversationID. Snapshots for an
// abandoned conversation are discarded, not applied.
func (s *Stream) apply(conversationID string, messages []domain.Message, err error) {
	s.mu.Lock()
	if s.conversationID != conversationID {
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.lastErr = err
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.onUpdate(snap)
		return
	}
	s.lastErr = nil

	messages = domain.FilterPurged(messages, s.purgedAt)
	domain.SortMessages(messages)
	s.messages = messages

	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.onUpdate(snap)
}

// Send persists a message to the other participant. Sends are serialized:
// a second send while one is in flight is rejected rather than raced.
func (s *Stream) Send(ctx context.Context, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, apperrors.ErrValidation
	}

	s.mu.Lock()
	if s.conversationID == "" {
		s.mu.Unlock()
		return domain.Message{}, apperrors.ErrNotFound
	}
	if s.sending {
		s.mu.Unlock()
		return domain.Message{}, apperrors.ErrSendInFlight
	}
	s.sending = true
	userID, otherID, conversationID := s.userID, s.otherID, s.conversationID
	s.mu.Unlock()

	msg, err := s.backend.SendMessage(ctx, userID, otherID, text)

	s.mu.Lock()
	s.sending = false
	if err != nil || s.conversationID != conversationID {
		s.mu.Unlock()
		return msg, err
	}
	// Append the confirmed message without waiting for the next push.
	s.messages = append(s.messages, msg)
	domain.SortMessages(s.messages)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.onUpdate(snap)
	return msg, nil
}

// Unsend soft-deletes one of the user's own messages. The sender check is
// enforced here before anything reaches the backend.
func (s *Stream) Unsend(ctx context.Context, messageID string) error {
	s.mu.Lock()
	var target *domain.Message
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			target = &s.messages[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return apperrors.ErrNotFound
	}
	if target.SenderID != s.userID {
		s.mu.Unlock()
		return apperrors.ErrNotSender
	}
	userID, conversationID := s.userID, s.conversationID
	s.mu.Unlock()

	if err := s.backend.Unsend(ctx, userID, messageID); err != nil {
		return err
	}

	// Reflect the confirmed deletion locally.
	now := time.Now()
	s.mu.Lock()
	if s.conversationID == conversationID {
		for i := range s.messages {
			if s.messages[i].ID == messageID {
				s.messages[i].Deleted = true
				s.messages[i].Text = ""
				s.messages[i].DeletedAt = &now
				s.messages[i].DeletedBy = userID
			}
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.onUpdate(snap)
	return nil
}

func (s *Stream) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Stream) snapshotLocked() Snapshot {
	messages := make([]domain.Message, len(s.messages))
	copy(messages, s.messages)
	return Snapshot{
		ConversationID: s.conversationID,
		Messages:       messages,
		Err:            s.lastErr,
	}
}

// ConversationID returns the id of the active conversation, or "".
func (s *Stream) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// OtherParticipant returns the other participant of the active
// conversation, or "".
func (s *Stream) OtherParticipant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otherID
}
