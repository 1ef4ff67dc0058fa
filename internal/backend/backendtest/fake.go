// Package backendtest provides an in-memory Backend for controller tests.
// Subscriptions deliver synchronously: Push* invokes the registered
// callbacks on the caller's goroutine, so tests need no sleeps.
package backendtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gigchat/internal/backend"
	"gigchat/internal/domain"
	apperrors "gigchat/pkg/errors"
)

type conversationSub struct {
	fake      *Fake
	userID    string
	fn        backend.ConversationsFunc
	cancelled bool
}

func (s *conversationSub) Cancel() {
	s.fake.mu.Lock()
	s.cancelled = true
	s.fake.mu.Unlock()
}

type messageSub struct {
	fake           *Fake
	userID         string
	conversationID string
	fn             backend.MessagesFunc
	cancelled      bool
}

func (s *messageSub) Cancel() {
	s.fake.mu.Lock()
	s.cancelled = true
	s.fake.mu.Unlock()
}

// Fake implements backend.Backend over in-memory maps. Error fields, when
// set, are returned by the corresponding operation.
type Fake struct {
	mu sync.Mutex

	Conversations map[string][]domain.Conversation // by user id
	Messages      map[string][]domain.Message      // by conversation id
	Profiles      map[string]domain.Profile
	Presences     map[string]domain.Presence
	Results       []domain.SearchResult

	SendErr     error
	MarkReadErr error
	HideErr     error
	PurgeErr    error
	UnsendErr   error
	SearchErr   error

	MarkReadCalls []string
	HideCalls     []string
	PurgeCalls    []string
	UnsendCalls   []string
	SearchCalls   []string

	convSubs []*conversationSub
	msgSubs  []*messageSub
}

func New() *Fake {
	return &Fake{
		Conversations: make(map[string][]domain.Conversation),
		Messages:      make(map[string][]domain.Message),
		Profiles:      make(map[string]domain.Profile),
		Presences:     make(map[string]domain.Presence),
	}
}

var _ backend.Backend = (*Fake)(nil)

func (f *Fake) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Conversation(nil), f.Conversations[userID]...), nil
}

func (f *Fake) StartConversation(ctx context.Context, userID, otherUserID string) (string, error) {
	return domain.PairID(userID, otherUserID)
}

func (f *Fake) GetMessages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.Messages[conversationID]...), nil
}

func (f *Fake) SendMessage(ctx context.Context, userID, otherUserID, text string) (domain.Message, error) {
	f.mu.Lock()
	if f.SendErr != nil {
		defer f.mu.Unlock()
		return domain.Message{}, f.SendErr
	}
	f.mu.Unlock()

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
	f.mu.Lock()
	f.Messages[conversationID] = append(f.Messages[conversationID], msg)
	f.mu.Unlock()
	return msg, nil
}

func (f *Fake) MarkRead(ctx context.Context, userID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MarkReadCalls = append(f.MarkReadCalls, conversationID)
	return f.MarkReadErr
}

func (f *Fake) HideForMe(ctx context.Context, userID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HideErr != nil {
		return f.HideErr
	}
	f.HideCalls = append(f.HideCalls, conversationID)
	return nil
}

func (f *Fake) PurgeForEveryone(ctx context.Context, userID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PurgeErr != nil {
		return f.PurgeErr
	}
	f.PurgeCalls = append(f.PurgeCalls, conversationID)
	return nil
}

func (f *Fake) Unsend(ctx context.Context, userID, messageID string) error {
	f.mu.Lock()
	if f.UnsendErr != nil {
		defer f.mu.Unlock()
		return f.UnsendErr
	}
	f.UnsendCalls = append(f.UnsendCalls, messageID)
	for convID, msgs := range f.Messages {
		for i, m := range msgs {
			if m.ID == messageID {
				msgs[i].Text = ""
				msgs[i].Deleted = true
				now := time.Now()
				msgs[i].DeletedAt = &now
				msgs[i].DeletedBy = userID
				f.Messages[convID] = msgs
			}
		}
	}
	f.mu.Unlock()
	return nil
}

func (f *Fake) SearchUsers(ctx context.Context, userID, query string, limit int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchCalls = append(f.SearchCalls, query)
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	return append([]domain.SearchResult(nil), f.Results...), nil
}

func (f *Fake) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Profiles[userID]
	if !ok {
		return domain.Profile{}, apperrors.ErrNotFound
	}
	return p, nil
}

func (f *Fake) Presence(ctx context.Context, userIDs []string) (map[string]domain.Presence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.Presence, len(userIDs))
	for _, id := range userIDs {
		if p, ok := f.Presences[id]; ok {
			out[id] = p
		} else {
			out[id] = domain.Presence{UserID: id, State: domain.PresenceUnknown}
		}
	}
	return out, nil
}

func (f *Fake) SubscribeConversations(ctx context.Context, userID string, limit int, fn backend.ConversationsFunc) (backend.Subscription, error) {
	sub := &conversationSub{fake: f, userID: userID, fn: fn}
	f.mu.Lock()
	f.convSubs = append(f.convSubs, sub)
	current := append([]domain.Conversation(nil), f.Conversations[userID]...)
	f.mu.Unlock()
	fn(current, nil)
	return sub, nil
}

func (f *Fake) SubscribeMessages(ctx context.Context, userID, conversationID string, limit int, fn backend.MessagesFunc) (backend.Subscription, error) {
	sub := &messageSub{fake: f, userID: userID, conversationID: conversationID, fn: fn}
	f.mu.Lock()
	f.msgSubs = append(f.msgSubs, sub)
	current := append([]domain.Message(nil), f.Messages[conversationID]...)
	f.mu.Unlock()
	fn(current, nil)
	return sub, nil
}

func (f *Fake) Close() error { return nil }

// PushConversations replaces userID's directory and delivers it to every
// live subscription for that user.
func (f *Fake) PushConversations(userID string, conversations []domain.Conversation) {
	f.pushConversations(userID, conversations, nil)
}

// PushConversationsError delivers a transient directory error.
func (f *Fake) PushConversationsError(userID string, err error) {
	f.pushConversations(userID, nil, err)
}

func (f *Fake) pushConversations(userID string, conversations []domain.Conversation, err error) {
	f.mu.Lock()
	if err == nil {
		f.Conversations[userID] = conversations
	}
	var fns []backend.ConversationsFunc
	for _, sub := range f.convSubs {
		if sub.userID == userID && !sub.cancelled {
			fns = append(fns, sub.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(append([]domain.Conversation(nil), conversations...), err)
	}
}

// PushMessages replaces a conversation's log and delivers it to every live
// subscription on it.
func (f *Fake) PushMessages(conversationID string, messages []domain.Message) {
	f.mu.Lock()
	f.Messages[conversationID] = messages
	var fns []backend.MessagesFunc
	for _, sub := range f.msgSubs {
		if sub.conversationID == conversationID && !sub.cancelled {
			fns = append(fns, sub.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(append([]domain.Message(nil), messages...), nil)
	}
}

// ActiveMessageSubs counts non-cancelled message subscriptions. Used to
// assert that switching conversations never leaks a subscription.
func (f *Fake) ActiveMessageSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.msgSubs {
		if !sub.cancelled {
			n++
		}
	}
	return n
}

// ActiveConversationSubs counts non-cancelled directory subscriptions.
func (f *Fake) ActiveConversationSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.convSubs {
		if !sub.cancelled {
			n++
		}
	}
	return n
}
