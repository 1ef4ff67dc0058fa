package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gigchat/internal/ratelimit"
	"gigchat/internal/transport/httpdto"
)

// MessageRateLimitMiddleware caps message sends per user. Apply after
// AuthMiddleware.
func MessageRateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return limitBy(limiter.AllowMessage)
}

// SearchRateLimitMiddleware caps directory searches per user. Apply after
// AuthMiddleware.
func SearchRateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return limitBy(limiter.AllowSearch)
}

func limitBy(allow func(context.Context, string) (*ratelimit.Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		result, err := allow(c.Request.Context(), userID)
		if err != nil {
			// Limiter errors fail open.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.ResetIn.Seconds())))
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}
		c.Next()
	}
}
