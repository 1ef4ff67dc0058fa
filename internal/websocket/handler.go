package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gigchat/internal/auth"
	"gigchat/internal/events"
	"gigchat/internal/transport/httpdto"
)

// clientFrame is what connected clients send: subscribe/unsubscribe
// requests for specific channels.
type clientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type Handler struct {
	tokens     *auth.Tokens
	hub        *Hub
	authorizer *ChannelAuthorizer
}

func NewHandler(tokens *auth.Tokens, hub *Hub, authorizer *ChannelAuthorizer) *Handler {
	return &Handler{tokens: tokens, hub: hub, authorizer: authorizer}
}

func (h *Handler) Connect(c *gin.Context) {
	claims, err := h.tokens.Parse(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID := claims.UserID

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	// Every connection watches its own directory and presence without
	// asking.
	h.hub.Subscribe(client, events.DirectoryChannel(userID))
	h.hub.Subscribe(client, events.PresenceChannel(userID))

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		switch frame.Action {
		case "subscribe":
			allowed, err := h.authorizer.CanSubscribe(c.Request.Context(), userID, frame.Channel)
			if err != nil || !allowed {
				continue
			}
			h.hub.Subscribe(client, frame.Channel)
		case "unsubscribe":
			h.hub.Unsubscribe(client, frame.Channel)
		}
	}

	h.hub.Unregister(client)
}
