package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hcadmin/internal/models"
	"hcadmin/internal/security"
	"hcadmin/internal/service"
)

const (
	ContextUser   = "current_user"
	ContextClaims = "access_claims"
)

type SessionChecker interface {
	ValidateSession(ctx context.Context, sessionID string) (models.LoginSession, error)
	TouchSession(ctx context.Context, sessionID string, client service.ClientInfo) error
}

type UserLoader interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Auth accepts a bearer access token only while its session is active, so
// logout and revocation take effect before the JWT expires.
func Auth(keys security.AccessTokenKeys, users UserLoader, sessions SessionChecker, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := keys.Parse(tokenStr, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		session, err := sessions.ValidateSession(c.Request.Context(), claims.SessionID)
		if err != nil {
			if errors.Is(err, service.ErrSessionInactive) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ReasonSessionInactive})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
			return
		}
		if session.UserID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_mismatch"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}
		if !user.Active() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": service.ReasonUserInactive})
			return
		}

		err = sessions.TouchSession(c.Request.Context(), session.ID, service.ClientInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		switch {
		case errors.Is(err, service.ErrSessionInactive):
			// ended between the check above and the touch
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ReasonSessionInactive})
			return
		case err != nil:
			log.Warn().
				Err(err).
				Str("session_id", session.ID).
				Str("request_id", RequestIDFrom(c)).
				Msg("touch session failed")
		}

		c.Set(ContextClaims, *claims)
		c.Set(ContextUser, user)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func CurrentClaims(c *gin.Context) (security.AccessClaims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return security.AccessClaims{}, false
	}
	claims, ok := v.(security.AccessClaims)
	return claims, ok
}
