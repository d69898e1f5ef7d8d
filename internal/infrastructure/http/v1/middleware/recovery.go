// Package middleware provides the gin middleware of the API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/pkg/logger"
)

// Recovery turns a panic into a 500 and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", r,
					"stack", string(debug.Stack()),
				)
				_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", r)).
					WithDetail("request_id", c.GetString("request_id")))
				c.Abort()
			}
		}()
		c.Next()
	}
}
