package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hcadmin/internal/ratelimit"
)

// RateLimit keys requests by client IP. A limiter error lets the request
// through; the reset flow still has its per-user cap.
func RateLimit(limiter ratelimit.Limiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		ok, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_requests"})
			return
		}
		c.Next()
	}
}
