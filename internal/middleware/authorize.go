package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"hcadmin/internal/models"
	"hcadmin/internal/service"
)

// RequireRoles must run after Auth. Admin routes use it with the admin and
// superadmin roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := slices.Clone(roles)

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ReasonUnauthenticated})
			return
		}
		if !slices.Contains(allowed, user.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": service.ReasonForbidden})
			return
		}
		c.Next()
	}
}
