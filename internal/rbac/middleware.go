package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clevertap-sync/internal/auth"
	"clevertap-sync/pkg/logger"
)

// Require admits callers whose role grants p. It runs after
// auth.RequireAccessToken: a request without an identity gets 401.
func Require(p Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !Allows(id.Role, p) {
			logger.FromGin(c).Info("permission denied", "caller", id.Subject, "role", id.Role, "permission", p)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "permission": p})
			return
		}
		c.Next()
	}
}
