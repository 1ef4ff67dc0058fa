package backend

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/redis/go-redis/v9"

	"gigchat/config"
	"gigchat/internal/domain"
	"gigchat/internal/presence"
	"gigchat/pkg/logger"
)

// ConversationsFunc receives directory snapshots. On a transient failure it
// is called with the error and a nil slice; the subscription stays alive and
// callers keep their last-known-good data.
type ConversationsFunc func(conversations []domain.Conversation, err error)

// MessagesFunc receives message-log snapshots for one conversation.
type MessagesFunc func(messages []domain.Message, err error)

// Subscription is a live handle on a continuously-updated query. Cancel is
// idempotent and releases everything the subscription holds.
type Subscription interface {
	Cancel()
}

// Backend is the single contract both store modes implement. Callers never
// branch on which mode is active.
type Backend interface {
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	StartConversation(ctx context.Context, userID, otherUserID string) (string, error)
	GetMessages(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error)
	SendMessage(ctx context.Context, userID, otherUserID, text string) (domain.Message, error)
	MarkRead(ctx context.Context, userID, conversationID string) error
	HideForMe(ctx context.Context, userID, conversationID string) error
	PurgeForEveryone(ctx context.Context, userID, conversationID string) error
	Unsend(ctx context.Context, userID, messageID string) error

	SearchUsers(ctx context.Context, userID, query string, limit int) ([]domain.SearchResult, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	Presence(ctx context.Context, userIDs []string) (map[string]domain.Presence, error)

	SubscribeConversations(ctx context.Context, userID string, limit int, fn ConversationsFunc) (Subscription, error)
	SubscribeMessages(ctx context.Context, userID, conversationID string, limit int, fn MessagesFunc) (Subscription, error)

	Close() error
}

// Options carries the infrastructure handles the selected mode needs.
type Options struct {
	DB    *gorm.DB
	Redis *redis.Client
	Token string
	Log   *logger.Logger
	// Channel is the ephemeral connection-state source for live-mode
	// presence. Leave nil outside the process that hosts the websocket
	// hub; presence then falls back to heartbeats alone.
	Channel presence.ChannelSource
}

// New selects the backend implementation from configuration. This is the
// only place the mode flag is read.
func New(cfg *config.Config, opts Options) (Backend, error) {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	switch cfg.BackendMode {
	case config.ModeLive:
		if opts.DB == nil || opts.Redis == nil {
			return nil, fmt.Errorf("live backend requires database and redis handles")
		}
		tracker := presence.NewTracker(
			presence.NewHeartbeatStore(opts.Redis, 2*cfg.HeartbeatInterval),
			channelOrNone(opts.Channel),
			cfg.HeartbeatStaleness,
		)
		return NewLiveBackend(opts.DB, opts.Redis, tracker, opts.Log), nil
	case config.ModeRest:
		state, err := OpenLocalState(cfg.LocalStateDir)
		if err != nil {
			return nil, err
		}
		return NewRestBackend(RestConfig{
			BaseURL:            cfg.RestBaseURL,
			Token:              opts.Token,
			DirectoryPollEvery: cfg.DirectoryPollEvery,
			MessagesPollEvery:  cfg.MessagesPollEvery,
		}, state, opts.Log), nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.BackendMode)
	}
}

// noChannel is the channel source used outside the websocket-hub process:
// it never has an opinion, so heartbeats decide.
type noChannel struct{}

func (noChannel) State(string) presence.ChannelSignal { return presence.ChannelNoSignal }

func channelOrNone(ch presence.ChannelSource) presence.ChannelSource {
	if ch == nil {
		return noChannel{}
	}
	return ch
}
