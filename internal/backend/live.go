package backend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gigchat/internal/domain"
	"gigchat/internal/events"
	"gigchat/internal/presence"
	"gigchat/internal/repository"
	apperrors "gigchat/pkg/errors"
	"gigchat/pkg/logger"
)

const defaultListLimit = 50

// LiveBackend implements Backend against the push-subscribable store:
// postgres for state, redis pub/sub for incremental update signals.
type LiveBackend struct {
	db       *gorm.DB
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	bus      *events.Bus
	tracker  *presence.Tracker
	log      *logger.Logger
}

func NewLiveBackend(db *gorm.DB, rdb *redis.Client, tracker *presence.Tracker, log *logger.Logger) *LiveBackend {
	return &LiveBackend{
		db:       db,
		convRepo: repository.NewConversationRepository(db),
		msgRepo:  repository.NewMessageRepository(db),
		userRepo: repository.NewUserRepository(db),
		bus:      events.NewBus(rdb),
		tracker:  tracker,
		log:      log,
	}
}

func (b *LiveBackend) Presence(ctx context.Context, userIDs []string) (map[string]domain.Presence, error) {
	return b.tracker.Snapshot(ctx, userIDs), nil
}

// Conversations exposes the conversation repository for collaborators that
// need participant checks, like the websocket channel authorizer.
func (b *LiveBackend) Conversations() repository.ConversationRepository {
	return b.convRepo
}

func (b *LiveBackend) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := b.convRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	conversations := make([]domain.Conversation, 0, len(rows))
	for _, row := range rows {
		conversations = append(conversations, row.ToDomain())
	}
	return conversations, nil
}

func (b *LiveBackend) StartConversation(ctx context.Context, userID, otherUserID string) (string, error) {
	if userID == "" {
		return "", apperrors.ErrAuthRequired
	}
	id, err := domain.PairID(userID, otherUserID)
	if err != nil {
		return "", err
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := domain.NewConversation(userID, otherUserID, time.Now())
		if err != nil {
			return err
		}
		row := repository.ConversationRow{
			ID:            conv.ID,
			ParticipantA:  conv.Participants[0],
			ParticipantB:  conv.Participants[1],
			LastUpdatedAt: conv.LastUpdatedAt,
			CreatedAt:     time.Now(),
		}
		convRepo := repository.NewConversationRepository(tx)
		if err := convRepo.Create(ctx, &row); err != nil {
			// Starting twice yields the same id.
			if !errors.Is(err, apperrors.ErrAlreadyExists) {
				return err
			}
		}
		if err := repository.EnsureMembers(ctx, tx, conv.ID, conv.Participants); err != nil {
			return err
		}
		// Opening a conversation the user previously hid brings it back to
		// their directory, otherwise it could never be activated again.
		if err := convRepo.SetHidden(ctx, conv.ID, userID, false); err != nil {
			return err
		}
		return enqueueDirectory(ctx, tx, conv.ID, userID, otherUserID)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (b *LiveBackend) GetMessages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	conv, err := b.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	dc := conv.ToDomain()
	if !dc.HasParticipant(userID) {
		return nil, apperrors.ErrNotParticipant
	}

	rows, err := b.msgRepo.ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.ToDomain())
	}
	domain.SortMessages(messages)
	return domain.FilterPurged(messages, dc.PurgedAt), nil
}

func (b *LiveBackend) SendMessage(ctx context.Context, userID, otherUserID, text string) (domain.Message, error) {
	if userID == "" {
		return domain.Message{}, apperrors.ErrAuthRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, apperrors.ErrValidation
	}
	conversationID, err := domain.PairID(userID, otherUserID)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       userID,
		ReceiverID:     otherUserID,
		Text:           text,
		CreatedAt:      time.Now(),
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convRepo := repository.NewConversationRepository(tx)
		msgRepo := repository.NewMessageRepository(tx)

		// Implicit conversation creation on first send.
		if _, err := convRepo.GetByID(ctx, conversationID); err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			conv, err := domain.NewConversation(userID, otherUserID, msg.CreatedAt)
			if err != nil {
				return err
			}
			row := repository.ConversationRow{
				ID:            conv.ID,
				ParticipantA:  conv.Participants[0],
				ParticipantB:  conv.Participants[1],
				LastUpdatedAt: conv.LastUpdatedAt,
				CreatedAt:     msg.CreatedAt,
			}
			if err := convRepo.Create(ctx, &row); err != nil && !errors.Is(err, apperrors.ErrAlreadyExists) {
				return err
			}
			if err := repository.EnsureMembers(ctx, tx, conv.ID, conv.Participants); err != nil {
				return err
			}
		}

		if err := msgRepo.Create(ctx, &repository.MessageRow{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			ReceiverID:     msg.ReceiverID,
			Text:           msg.Text,
			CreatedAt:      msg.CreatedAt,
		}); err != nil {
			return err
		}
		if err := convRepo.UpdatePreview(ctx, conversationID, msg.Text, msg.CreatedAt); err != nil {
			return err
		}
		if err := convRepo.IncrementUnread(ctx, conversationID, otherUserID); err != nil {
			return err
		}
		if err := enqueueMessages(ctx, tx, conversationID, events.EventMessageNew); err != nil {
			return err
		}
		return enqueueDirectory(ctx, tx, conversationID, userID, otherUserID)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// MarkRead flips every unread message addressed to userID and resets the
// user's unread counter in one transaction, so the badge and the per-message
// flags never disagree.
func (b *LiveBackend) MarkRead(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	conv, err := b.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	dc := conv.ToDomain()
	if !dc.HasParticipant(userID) {
		return apperrors.ErrNotParticipant
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.NewMessageRepository(tx).MarkReceivedRead(ctx, conversationID, userID); err != nil {
			return err
		}
		if err := repository.NewConversationRepository(tx).ResetUnread(ctx, conversationID, userID); err != nil {
			return err
		}
		if err := enqueueMessages(ctx, tx, conversationID, events.EventMessageChanged); err != nil {
			return err
		}
		return enqueueDirectory(ctx, tx, conversationID, userID, dc.Other(userID))
	})
	return err
}

func (b *LiveBackend) HideForMe(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	conv, err := b.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.ToDomain().HasParticipant(userID) {
		return apperrors.ErrNotParticipant
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewConversationRepository(tx).SetHidden(ctx, conversationID, userID, true); err != nil {
			return err
		}
		// Only the hiding user's view changes.
		return enqueueDirectory(ctx, tx, conversationID, userID)
	})
}

// PurgeForEveryone moves the visibility cutoff to now for both participants
// and additionally hides the conversation for the purging user. Prior
// messages stay in the log; the cutoff excludes them at read time.
func (b *LiveBackend) PurgeForEveryone(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	conv, err := b.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	dc := conv.ToDomain()
	if !dc.HasParticipant(userID) {
		return apperrors.ErrNotParticipant
	}

	now := time.Now()
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convRepo := repository.NewConversationRepository(tx)
		if err := convRepo.SetPurgedAt(ctx, conversationID, now); err != nil {
			return err
		}
		if err := convRepo.SetHidden(ctx, conversationID, userID, true); err != nil {
			return err
		}
		if err := enqueueMessages(ctx, tx, conversationID, events.EventMessageChanged); err != nil {
			return err
		}
		return enqueueDirectory(ctx, tx, conversationID, userID, dc.Other(userID))
	})
	return err
}

func (b *LiveBackend) Unsend(ctx context.Context, userID, messageID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	row, err := b.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if row.SenderID != userID {
		return apperrors.ErrNotSender
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgRepo := repository.NewMessageRepository(tx)
		convRepo := repository.NewConversationRepository(tx)

		if err := msgRepo.SoftDelete(ctx, messageID, userID, time.Now()); err != nil {
			return err
		}

		// If the unsent message was the latest, the preview becomes an
		// explicit marker instead of silently reverting to older text.
		latest, err := latestMessage(ctx, tx, row.ConversationID)
		if err != nil {
			return err
		}
		if latest.ID == messageID {
			if err := convRepo.SetPreview(ctx, row.ConversationID, domain.UnsentPreview); err != nil {
				return err
			}
		}

		if err := enqueueMessages(ctx, tx, row.ConversationID, events.EventMessageChanged); err != nil {
			return err
		}
		return enqueueDirectory(ctx, tx, row.ConversationID, row.SenderID, row.ReceiverID)
	})
	return err
}

func latestMessage(ctx context.Context, db *gorm.DB, conversationID string) (repository.MessageRow, error) {
	var m repository.MessageRow
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.MessageRow{}, apperrors.ErrNotFound
		}
		return repository.MessageRow{}, err
	}
	return m, nil
}

func (b *LiveBackend) SearchUsers(ctx context.Context, userID, query string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	byUsername, err := b.userRepo.SearchByUsernamePrefix(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	byName, err := b.userRepo.SearchByNamePrefix(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return MergeSearchRows(userID, byUsername, byName, limit), nil
}

// MergeSearchRows merges the two index range queries by user id, first match
// wins, capped at limit. The current user is flagged non-selectable rather
// than excluded.
func MergeSearchRows(userID string, byUsername, byName []repository.UserRow, limit int) []domain.SearchResult {
	seen := make(map[string]struct{})
	results := make([]domain.SearchResult, 0, limit)
	for _, rows := range [][]repository.UserRow{byUsername, byName} {
		for _, row := range rows {
			if len(results) >= limit {
				return results
			}
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			results = append(results, domain.SearchResult{
				Profile: row.ToDomain(),
				Self:    row.ID == userID,
			})
		}
	}
	return results
}

func (b *LiveBackend) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	row, err := b.userRepo.GetByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return row.ToDomain(), nil
}

// SubscribeConversations pushes a directory snapshot immediately and then
// again on every change signal for userID, until cancelled. Once the bus
// registration is acknowledged the snapshot is queried once more, covering
// any signal published between the first query and the registration.
func (b *LiveBackend) SubscribeConversations(ctx context.Context, userID string, limit int, fn ConversationsFunc) (Subscription, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	sub := newLiveSubscription(ctx)

	notify := func() {
		conversations, err := b.ListConversations(sub.ctx, userID, limit)
		if sub.cancelled() {
			return
		}
		fn(conversations, err)
	}

	notify()
	go func() {
		err := b.bus.Subscribe(sub.ctx, []string{events.DirectoryChannel(userID)}, notify, func(string, events.Envelope) {
			notify()
		})
		if err != nil && !errors.Is(err, context.Canceled) && !sub.cancelled() {
			b.log.Logger.Warn("directory subscription ended", zap.String("user_id", userID), zap.Error(err))
			fn(nil, apperrors.ErrBackendUnavailable)
		}
	}()
	return sub, nil
}

// SubscribeMessages pushes the message log for one conversation immediately
// and then on every change signal, until cancelled. The log is re-queried
// once the bus registration is acknowledged, same as SubscribeConversations.
func (b *LiveBackend) SubscribeMessages(ctx context.Context, userID, conversationID string, limit int, fn MessagesFunc) (Subscription, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	sub := newLiveSubscription(ctx)

	notify := func() {
		messages, err := b.GetMessages(sub.ctx, userID, conversationID, limit)
		if sub.cancelled() {
			return
		}
		fn(messages, err)
	}

	notify()
	go func() {
		err := b.bus.Subscribe(sub.ctx, []string{events.MessagesChannel(conversationID)}, notify, func(string, events.Envelope) {
			notify()
		})
		if err != nil && !errors.Is(err, context.Canceled) && !sub.cancelled() {
			b.log.Logger.Warn("message subscription ended", zap.String("conversation_id", conversationID), zap.Error(err))
			fn(nil, apperrors.ErrBackendUnavailable)
		}
	}()
	return sub, nil
}

func (b *LiveBackend) Close() error { return nil }

// enqueueDirectory writes one conversation.changed signal per user into the
// outbox, inside the caller's transaction.
func enqueueDirectory(ctx context.Context, tx *gorm.DB, conversationID string, userIDs ...string) error {
	repo := repository.NewOutboxRepository(tx)
	for _, uid := range userIDs {
		err := repo.Enqueue(ctx, &repository.OutboxRow{
			ID:             uuid.New().String(),
			Channel:        events.DirectoryChannel(uid),
			EventType:      events.EventConversationChanged,
			ConversationID: conversationID,
			UserID:         uid,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func enqueueMessages(ctx context.Context, tx *gorm.DB, conversationID, eventType string) error {
	return repository.NewOutboxRepository(tx).Enqueue(ctx, &repository.OutboxRow{
		ID:             uuid.New().String(),
		Channel:        events.MessagesChannel(conversationID),
		EventType:      eventType,
		ConversationID: conversationID,
	})
}

// liveSubscription cancels the subscription context and marks the handle so
// late query results are discarded rather than applied.
type liveSubscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	done   bool
}

func newLiveSubscription(parent context.Context) *liveSubscription {
	ctx, cancel := context.WithCancel(parent)
	return &liveSubscription{ctx: ctx, cancel: cancel}
}

func (s *liveSubscription) Cancel() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.cancel()
}

func (s *liveSubscription) cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
