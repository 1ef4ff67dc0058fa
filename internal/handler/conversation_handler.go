package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gigchat/internal/backend"
	"gigchat/internal/middleware"
	"gigchat/internal/transport/httpdto"
)

type ConversationHandler struct {
	backend backend.Backend
}

func NewConversationHandler(b backend.Backend) *ConversationHandler {
	return &ConversationHandler{backend: b}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	conversations, err := h.backend.ListConversations(c.Request.Context(), userID, limit)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conversations))
}

func (h *ConversationHandler) Start(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION"))
		return
	}

	id, err := h.backend.StartConversation(c.Request.Context(), userID, req.OtherUserID)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.StartConversationResponse{ConversationID: id}))
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	messages, err := h.backend.GetMessages(c.Request.Context(), userID, c.Param("id"), limit)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(messages))
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.backend.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"marked": true}))
}
