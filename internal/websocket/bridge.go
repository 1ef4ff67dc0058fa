package websocket

import (
	"context"
	"encoding/json"

	"gigchat/internal/events"
)

// Bridge relays bus events into the hub so every subscribed socket sees
// the same invalidation signals the in-process live backend does.
type Bridge struct {
	bus *events.Bus
	hub *Hub
}

func NewBridge(bus *events.Bus, hub *Hub) *Bridge {
	return &Bridge{bus: bus, hub: hub}
}

// Run blocks, relaying every gigchat event until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	return b.bus.SubscribePattern(ctx, "gigchat:*", func(channel string, env events.Envelope) {
		payload, err := json.Marshal(env)
		if err != nil {
			return
		}
		b.hub.Broadcast(channel, payload)
	})
}
