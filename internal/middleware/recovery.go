package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 carrying the request id, so a
// dashboard error can be matched to the log line.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			requestID := c.GetString(requestIDHeader)
			log.Error().
				Interface("panic", r).
				Str("route", c.FullPath()).
				Str("request_id", requestID).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "internal_server_error",
				"request_id": requestID,
			})
		}()
		c.Next()
	}
}
