package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
)

// TokenValidator checks an access token.
type TokenValidator interface {
	ValidateToken(token string) (*appctx.UserContext, error)
}

// bearerToken returns the token of an "Authorization: Bearer" header.
// Browsers cannot set headers on WebSocket upgrades, so the access_token
// query parameter is accepted there.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("access_token")
	}
	return ""
}

// Auth validates the access token and stores the user in the request context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			_ = c.Error(apperror.NewUnauthorized("missing bearer token"))
			c.Abort()
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Set("user_id", user.UserID)
		c.Set("seller_id", user.SellerID)
		c.Next()
	}
}
