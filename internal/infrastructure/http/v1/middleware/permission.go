package middleware

import (
	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
)

// RequirePermission lets the request through when the user has any of perms.
// Admins have every permission.
func RequirePermission(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}
		for _, p := range perms {
			if user.HasPermission(p) {
				c.Next()
				return
			}
		}
		_ = c.Error(apperror.NewForbidden("insufficient permissions").
			WithDetail("required_permissions", perms))
		c.Abort()
	}
}
