package middleware

import (
	"github.com/gin-gonic/gin"

	"gigchat/internal/transport/httpdto"
	"gigchat/pkg/logger"
)

// ErrorHandler turns errors handlers attach via c.Error into the standard
// envelope. Handlers that already wrote a response are left alone.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.FromContext(c.Request.Context()).Errorf("request error: %s", err.Error())
		}
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
	}
}
