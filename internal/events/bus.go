package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published by the live backend. Subscribers treat an event as
// an invalidation signal and re-query; payloads carry only identifiers.
const (
	EventConversationChanged = "conversation.changed"
	EventMessageNew          = "message.new"
	EventMessageChanged      = "message.changed"
	EventPresenceChanged     = "presence.changed"
)

// Envelope is the wire shape of a bus event.
type Envelope struct {
	EventType      string    `json:"event_type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// DirectoryChannel carries conversation-level changes for one user.
func DirectoryChannel(userID string) string {
	return fmt.Sprintf("gigchat:directory:%s", userID)
}

// MessagesChannel carries message-level changes for one conversation.
func MessagesChannel(conversationID string) string {
	return fmt.Sprintf("gigchat:messages:%s", conversationID)
}

// PresenceChannel carries presence flips for one user.
func PresenceChannel(userID string) string {
	return fmt.Sprintf("gigchat:presence:%s", userID)
}

// Bus is a thin publish/subscribe layer over Redis Pub/Sub.
type Bus struct {
	client *redis.Client
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func (b *Bus) Publish(ctx context.Context, channel string, env Envelope) error {
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, channel, data).Err()
}

// SubscribePattern delivers envelopes from every channel matching pattern
// to handler until ctx is cancelled. It blocks; run it on its own goroutine.
func (b *Bus) SubscribePattern(ctx context.Context, pattern string, handler func(channel string, env Envelope)) error {
	sub := b.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			handler(msg.Channel, env)
		}
	}
}

// Subscribe delivers envelopes from the given channels to handler until ctx
// is cancelled. It blocks; run it on its own goroutine. ready, if non-nil,
// is called once the server has acknowledged the subscription, after which
// no published event can be missed.
func (b *Bus) Subscribe(ctx context.Context, channels []string, ready func(), handler func(channel string, env Envelope)) error {
	sub := b.client.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		ready()
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			handler(msg.Channel, env)
		}
	}
}
