package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
)

// KeyedLimiter throttles by key.
type KeyedLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// RateLimit throttles requests per user, or per client IP before login.
func RateLimit(limiter KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid := appctx.GetUserID(c.Request.Context()); uid != "" {
			key = "user:" + uid
		}
		if ok, retry := limiter.Allow(key); !ok {
			_ = c.Error(apperror.NewRateLimited(retry))
			c.Abort()
			return
		}
		c.Next()
	}
}
