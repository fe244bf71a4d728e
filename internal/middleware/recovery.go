package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hcadmin/internal/service"
)

// Recovery turns a handler panic into the standard internal_error body.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error().
				Interface("panic", r).
				Str("route", c.FullPath()).
				Str("request_id", RequestIDFrom(c)).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      service.ReasonInternal,
				"request_id": RequestIDFrom(c),
			})
		}()
		c.Next()
	}
}
