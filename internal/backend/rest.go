package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gigchat/internal/domain"
	apperrors "gigchat/pkg/errors"
	"gigchat/pkg/logger"
)

// RestConfig configures the polled-REST backend.
type RestConfig struct {
	BaseURL            string
	Token              string
	DirectoryPollEvery time.Duration
	MessagesPollEvery  time.Duration
}

// RestBackend implements Backend against a request/response store. The
// "subscriptions" it hands out are interval pollers re-issuing the one-shot
// list calls; hide and purge state lives in LocalState because the hosted
// API has no visibility concept.
type RestBackend struct {
	client    *resty.Client
	state     *LocalState
	log       *logger.Logger
	dirEvery  time.Duration
	msgsEvery time.Duration
}

func NewRestBackend(cfg RestConfig, state *LocalState, log *logger.Logger) *RestBackend {
	if cfg.DirectoryPollEvery <= 0 {
		cfg.DirectoryPollEvery = 3 * time.Second
	}
	if cfg.MessagesPollEvery <= 0 {
		cfg.MessagesPollEvery = 2500 * time.Millisecond
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.Token).
		SetTimeout(10 * time.Second)
	return &RestBackend{
		client:    client,
		state:     state,
		log:       log,
		dirEvery:  cfg.DirectoryPollEvery,
		msgsEvery: cfg.MessagesPollEvery,
	}
}

// SetToken swaps the bearer token on sign-in/out.
func (b *RestBackend) SetToken(token string) {
	b.client.SetAuthToken(token)
}

// apiEnvelope mirrors the wire response shape.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

func (b *RestBackend) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	req := b.client.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	resp, err := req.Get(path)
	return b.decode(resp, err, out)
}

func (b *RestBackend) post(ctx context.Context, path string, body, out interface{}) error {
	req := b.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	return b.decode(resp, err, out)
}

func (b *RestBackend) delete(ctx context.Context, path string) error {
	resp, err := b.client.R().SetContext(ctx).Delete(path)
	return b.decode(resp, err, nil)
}

func (b *RestBackend) decode(resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}
	var env apiEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%w: malformed response", apperrors.ErrBackendUnavailable)
	}
	if !env.Success {
		return apiError(env.Code, env.Error)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: malformed payload", apperrors.ErrBackendUnavailable)
		}
	}
	return nil
}

// apiError maps wire error codes back onto the shared sentinels so callers
// can errors.Is regardless of mode.
func apiError(code, message string) error {
	switch code {
	case "UNAUTHORIZED":
		return apperrors.ErrAuthRequired
	case "NOT_PARTICIPANT":
		return apperrors.ErrNotParticipant
	case "VALIDATION":
		return apperrors.ErrValidation
	case "NOT_FOUND":
		return apperrors.ErrNotFound
	case "NOT_SENDER":
		return apperrors.ErrNotSender
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrBackendUnavailable, message)
	}
}

func (b *RestBackend) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	var conversations []domain.Conversation
	q := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if err := b.get(ctx, "/api/conversations", q, &conversations); err != nil {
		return nil, err
	}
	return b.overlay(userID, conversations), nil
}

// overlay applies the locally tracked hide/purge decisions on top of what
// the server returned.
func (b *RestBackend) overlay(userID string, conversations []domain.Conversation) []domain.Conversation {
	out := make([]domain.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if b.state.IsHidden(userID, c.ID) && !c.IsHiddenFor(userID) {
			c.HiddenFor = append(c.HiddenFor, userID)
		}
		if local := b.state.Purged(userID, c.ID); local != nil {
			if c.PurgedAt == nil || c.PurgedAt.Before(*local) {
				c.PurgedAt = local
			}
		}
		out = append(out, c)
	}
	return out
}

func (b *RestBackend) StartConversation(ctx context.Context, userID, otherUserID string) (string, error) {
	if userID == "" {
		return "", apperrors.ErrAuthRequired
	}
	if _, err := domain.PairID(userID, otherUserID); err != nil {
		return "", err
	}
	var result struct {
		ConversationID string `json:"conversation_id"`
	}
	body := map[string]string{"other_user_id": otherUserID}
	if err := b.post(ctx, "/api/conversations", body, &result); err != nil {
		return "", err
	}
	// Opening a hidden conversation brings it back into the directory.
	if err := b.state.Unhide(userID, result.ConversationID); err != nil {
		return "", err
	}
	return result.ConversationID, nil
}

func (b *RestBackend) GetMessages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	var messages []domain.Message
	q := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if err := b.get(ctx, "/api/conversations/"+conversationID+"/messages", q, &messages); err != nil {
		return nil, err
	}
	domain.SortMessages(messages)
	return domain.FilterPurged(messages, b.state.Purged(userID, conversationID)), nil
}

func (b *RestBackend) SendMessage(ctx context.Context, userID, otherUserID, text string) (domain.Message, error) {
	if userID == "" {
		return domain.Message{}, apperrors.ErrAuthRequired
	}
	if _, err := domain.PairID(userID, otherUserID); err != nil {
		return domain.Message{}, err
	}
	var msg domain.Message
	body := map[string]string{"other_user_id": otherUserID, "text": text}
	if err := b.post(ctx, "/api/messages", body, &msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (b *RestBackend) MarkRead(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	return b.post(ctx, "/api/conversations/"+conversationID+"/read", nil, nil)
}

// HideForMe is tracked client-side only: the hosted API has no hide concept.
func (b *RestBackend) HideForMe(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	return b.state.Hide(userID, conversationID)
}

// PurgeForEveryone in polled mode is a local cutoff plus a hide. It does not
// reach the other participant's device.
func (b *RestBackend) PurgeForEveryone(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	if err := b.state.SetPurged(userID, conversationID, time.Now()); err != nil {
		return err
	}
	return b.state.Hide(userID, conversationID)
}

func (b *RestBackend) Unsend(ctx context.Context, userID, messageID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}
	return b.delete(ctx, "/api/messages/"+messageID)
}

func (b *RestBackend) SearchUsers(ctx context.Context, userID, query string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	var results []domain.SearchResult
	q := url.Values{
		"q":     []string{query},
		"limit": []string{strconv.Itoa(limit)},
	}
	if err := b.get(ctx, "/api/users/search", q, &results); err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Self = results[i].ID == userID
	}
	return results, nil
}

// Presence asks the hosted API to reconcile states server-side so both modes
// return the same tri-state answer. Users the server does not report come
// back as Unknown.
func (b *RestBackend) Presence(ctx context.Context, userIDs []string) (map[string]domain.Presence, error) {
	out := make(map[string]domain.Presence, len(userIDs))
	for _, id := range userIDs {
		out[id] = domain.Presence{UserID: id, State: domain.PresenceUnknown}
	}
	if len(userIDs) == 0 {
		return out, nil
	}
	var reported []domain.Presence
	q := url.Values{"ids": []string{strings.Join(userIDs, ",")}}
	if err := b.get(ctx, "/api/presence", q, &reported); err != nil {
		return nil, err
	}
	for _, p := range reported {
		out[p.UserID] = p
	}
	return out, nil
}

func (b *RestBackend) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var profile domain.Profile
	if err := b.get(ctx, "/api/users/"+userID, nil, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// SubscribeConversations approximates a live query by re-issuing the list
// call on a fixed interval.
func (b *RestBackend) SubscribeConversations(ctx context.Context, userID string, limit int, fn ConversationsFunc) (Subscription, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	return b.poll(ctx, b.dirEvery, func(pollCtx context.Context) (func(), error) {
		conversations, err := b.ListConversations(pollCtx, userID, limit)
		return func() { fn(conversations, err) }, err
	}), nil
}

// SubscribeMessages polls the active conversation faster than the directory:
// message latency matters more.
func (b *RestBackend) SubscribeMessages(ctx context.Context, userID, conversationID string, limit int, fn MessagesFunc) (Subscription, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	return b.poll(ctx, b.msgsEvery, func(pollCtx context.Context) (func(), error) {
		messages, err := b.GetMessages(pollCtx, userID, conversationID, limit)
		return func() { fn(messages, err) }, err
	}), nil
}

// poll runs fetch immediately and then on every tick. Results resolving
// after cancellation are discarded, not applied.
func (b *RestBackend) poll(ctx context.Context, every time.Duration, fetch func(context.Context) (func(), error)) Subscription {
	sub := newPollSubscription(ctx)

	run := func() {
		deliver, err := fetch(sub.ctx)
		if sub.cancelled() {
			return
		}
		if err != nil {
			b.log.Logger.Debug("poll failed", zap.Error(err))
		}
		deliver()
	}

	run()
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-sub.ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
	return sub
}

func (b *RestBackend) Close() error { return nil }

type pollSubscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	done   bool
}

func newPollSubscription(parent context.Context) *pollSubscription {
	ctx, cancel := context.WithCancel(parent)
	return &pollSubscription{ctx: ctx, cancel: cancel}
}

func (s *pollSubscription) Cancel() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.cancel()
}

func (s *pollSubscription) cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
