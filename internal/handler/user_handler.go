package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gigchat/internal/backend"
	"gigchat/internal/middleware"
	"gigchat/internal/transport/httpdto"
)

type UserHandler struct {
	backend backend.Backend
}

func NewUserHandler(b backend.Backend) *UserHandler {
	return &UserHandler{backend: b}
}

func (h *UserHandler) Search(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	results, err := h.backend.SearchUsers(c.Request.Context(), userID, c.Query("q"), limit)
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(results))
}

func (h *UserHandler) Get(c *gin.Context) {
	if _, ok := middleware.UserIDFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	profile, err := h.backend.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(profile))
}
