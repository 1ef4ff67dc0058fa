package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gigchat/internal/backend"
	"gigchat/internal/domain"
	"gigchat/internal/events"
	"gigchat/internal/middleware"
	"gigchat/internal/presence"
	"gigchat/internal/transport/httpdto"
)

// PresenceHandler serves the heartbeat endpoints clients call while a tab
// is open, plus the bulk read used by polled-mode clients.
type PresenceHandler struct {
	heartbeats *presence.HeartbeatStore
	backend    backend.Backend
	bus        *events.Bus
}

func NewPresenceHandler(heartbeats *presence.HeartbeatStore, b backend.Backend, bus *events.Bus) *PresenceHandler {
	return &PresenceHandler{heartbeats: heartbeats, backend: b, bus: bus}
}

func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.heartbeats.Beat(c.Request.Context(), userID); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	h.publishChange(c, userID)

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"beat": true}))
}

// Offline is the explicit goodbye a client sends on teardown, so peers see
// the flip immediately instead of waiting for the heartbeat to go stale.
func (h *PresenceHandler) Offline(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.heartbeats.MarkOffline(c.Request.Context(), userID); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}
	h.publishChange(c, userID)

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"offline": true}))
}

func (h *PresenceHandler) List(c *gin.Context) {
	if _, ok := middleware.UserIDFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	presences, err := h.backend.Presence(c.Request.Context(), ids)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	list := make([]domain.Presence, 0, len(presences))
	for _, p := range presences {
		list = append(list, p)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(list))
}

func (h *PresenceHandler) publishChange(c *gin.Context, userID string) {
	_ = h.bus.Publish(c.Request.Context(), events.PresenceChannel(userID), events.Envelope{
		EventType:  events.EventPresenceChanged,
		UserID:     userID,
		OccurredAt: time.Now(),
	})
}
