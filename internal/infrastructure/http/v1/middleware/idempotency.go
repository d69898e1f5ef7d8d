package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
	"sellerdesk/internal/infrastructure/storage/postgres"
	"sellerdesk/pkg/logger"
)

const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	maxIdempotencyBodyBytes = 1 << 20
	maxIdempotencyKeyLength = 255
)

// IdempotencyStore is what the middleware needs from the key storage.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	Release(ctx context.Context, key string) error
}

// capturingWriter keeps a copy of the response body.
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a repeated POST carrying the
// same X-Idempotency-Key. Requests without the header pass through.
// Failed requests release the key so the client may retry.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			_ = c.Error(apperror.NewValidation("idempotency key is too long").
				WithDetail("max_length", maxIdempotencyKeyLength))
			c.Abort()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		ctx := c.Request.Context()
		operation := c.Request.Method + " " + c.Request.URL.Path

		replay, err := store.Acquire(ctx, key, appctx.GetUserID(ctx), operation, hex.EncodeToString(sum[:]))
		if err != nil {
			if !apperror.IsAppError(err) {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// errors registered with c.Error are rendered later by ErrorHandler,
		// so their body is not available here and the key is released
		status := w.Status()
		if len(c.Errors) > 0 && !w.Written() || status >= http.StatusInternalServerError {
			if err := store.Release(ctx, key); err != nil {
				logger.Warn(ctx, "release idempotency key", "key", key, "error", err)
			}
			return
		}
		if err := store.Complete(ctx, key, status, w.Header().Get("Content-Type"), w.body.Bytes()); err != nil {
			logger.Warn(ctx, "complete idempotency key", "key", key, "error", err)
		}
	}
}
