package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBus(client)
}

func TestSubscribeDeliversEverythingAfterReady(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	received := make(chan Envelope, 1)
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, []string{DirectoryChannel("alice")},
			func() { close(ready) },
			func(_ string, env Envelope) { received <- env })
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription never became ready")
	}

	// ready means the registration is acknowledged, so a publish issued
	// right after it must reach the handler.
	require.NoError(t, bus.Publish(ctx, DirectoryChannel("alice"), Envelope{
		EventType: EventConversationChanged,
		UserID:    "alice",
	}))

	select {
	case env := <-received:
		assert.Equal(t, EventConversationChanged, env.EventType)
		assert.Equal(t, "alice", env.UserID)
		assert.False(t, env.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event published after ready was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not stop on cancel")
	}
}

func TestSubscribeIgnoresOtherChannels(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	received := make(chan Envelope, 2)
	go func() {
		_ = bus.Subscribe(ctx, []string{MessagesChannel("alice_bob")},
			func() { close(ready) },
			func(_ string, env Envelope) { received <- env })
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription never became ready")
	}

	require.NoError(t, bus.Publish(ctx, MessagesChannel("alice_carol"), Envelope{EventType: EventMessageNew}))
	require.NoError(t, bus.Publish(ctx, MessagesChannel("alice_bob"), Envelope{EventType: EventMessageChanged}))

	select {
	case env := <-received:
		assert.Equal(t, EventMessageChanged, env.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("event for the subscribed conversation was not delivered")
	}
	select {
	case env := <-received:
		t.Fatalf("unexpected delivery from another conversation: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribePatternRoutesMatchingChannels(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		channel string
		env     Envelope
	}
	received := make(chan delivery, 1)
	go func() {
		_ = bus.SubscribePattern(ctx, "gigchat:*", func(channel string, env Envelope) {
			received <- delivery{channel: channel, env: env}
		})
	}()

	// The pattern subscription has no readiness hook; retry until the
	// registration has landed.
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, PresenceChannel("bob"), Envelope{EventType: EventPresenceChanged, UserID: "bob"})
		select {
		case d := <-received:
			assert.Equal(t, PresenceChannel("bob"), d.channel)
			assert.Equal(t, EventPresenceChanged, d.env.EventType)
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
