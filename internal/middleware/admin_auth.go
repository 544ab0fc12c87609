package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/models"
)

// AdminAuthMiddleware restricts routes to admin accounts. It runs after
// RequireAuth, so the role claim is already in the context.
type AdminAuthMiddleware struct {
	logger *logrus.Logger
}

// NewAdminAuthMiddleware creates the admin role check
func NewAdminAuthMiddleware(logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		logger: logger,
	}
}

// RequireAdmin rejects authenticated users without the admin role
func (a *AdminAuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		if role != models.RoleAdmin {
			a.logger.WithFields(logrus.Fields{
				"path":    c.Request.URL.Path,
				"method":  c.Request.Method,
				"user_id": UserID(c),
				"role":    role,
			}).Warn("admin access denied")

			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Insufficient permissions",
				"code":    "INSUFFICIENT_PERMISSIONS",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
