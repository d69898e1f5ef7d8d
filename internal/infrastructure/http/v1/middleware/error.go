package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/pkg/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error registered with c.Error.
// Internal causes are logged and never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Code:    apperror.CodeInternal,
				Message: "Internal server error",
				Details: map[string]any{"request_id": c.GetString("request_id")},
			})
			return
		}

		if appErr.Err != nil {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}
		if appErr.Code == apperror.CodeRateLimited {
			if secs, ok := appErr.Details["retry_after_seconds"].(int); ok {
				c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
			}
		}

		c.JSON(appErr.HTTPStatus, ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
	}
}
