package main

import (
	"context"
	"log"
	"time"

	"gigchat/config"
	"gigchat/internal/auth"
	"gigchat/internal/backend"
	"gigchat/internal/events"
	"gigchat/internal/handler"
	"gigchat/internal/outbox"
	"gigchat/internal/presence"
	"gigchat/internal/ratelimit"
	"gigchat/internal/redis"
	"gigchat/internal/repository"
	"gigchat/internal/server"
	"gigchat/internal/websocket"
	"gigchat/pkg/database"
	"gigchat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	defer l.Sync()

	database.Connect(cfg)
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redis.Initialize(cfg)
	rdb := redis.GetClient()

	tokens := auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)
	bus := events.NewBus(rdb)

	channelState := presence.NewChannelState()
	heartbeats := presence.NewHeartbeatStore(rdb, 2*cfg.HeartbeatInterval)
	tracker := presence.NewTracker(heartbeats, channelState, cfg.HeartbeatStaleness)

	live := backend.NewLiveBackend(database.DB, rdb, tracker, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(channelState)
	go hub.Run(ctx)

	bridge := websocket.NewBridge(bus, hub)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			l.Errorf("event bridge stopped: %s", err)
		}
	}()

	processor := outbox.NewProcessor(repository.NewOutboxRepository(database.DB), bus, l, cfg.OutboxInterval)
	go processor.Run(ctx)

	authorizer := websocket.NewChannelAuthorizer(live.Conversations())
	limiter := ratelimit.NewLimiter(rdb, ratelimit.DefaultConfig())

	handlers := &server.Handlers{
		Conversations: handler.NewConversationHandler(live),
		Messages:      handler.NewMessageHandler(live),
		Users:         handler.NewUserHandler(live),
		Presence:      handler.NewPresenceHandler(heartbeats, live, bus),
		WS:            websocket.NewHandler(tokens, hub, authorizer),
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, tokens, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
