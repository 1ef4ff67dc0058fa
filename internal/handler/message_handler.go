package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gigchat/internal/backend"
	"gigchat/internal/middleware"
	"gigchat/internal/transport/httpdto"
)

type MessageHandler struct {
	backend backend.Backend
}

func NewMessageHandler(b backend.Backend) *MessageHandler {
	return &MessageHandler{backend: b}
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION"))
		return
	}

	msg, err := h.backend.SendMessage(c.Request.Context(), userID, req.OtherUserID, req.Text)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) Unsend(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.backend.Unsend(c.Request.Context(), userID, c.Param("id")); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unsent": true}))
}
