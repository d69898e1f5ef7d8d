package postgres

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sellerdesk/internal/core/apperror"
)

// IdempotencyStatus is the state of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyPending IdempotencyStatus = "pending"
	IdempotencyDone    IdempotencyStatus = "done"
)

// staleAfter is how long a pending key may stay locked before another
// request can take it over.
const staleAfter = time.Minute

// IdempotencyReplay is a stored response.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps Idempotency-Key records in sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{txManager: txManager, ttl: ttl, now: time.Now}
}

// Acquire claims key for the request. It returns:
//   - (nil, nil) when the caller owns the key and must call Complete
//   - (replay, nil) when the request already finished
//   - (nil, err) when the key is in flight or was used for another request
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.now().UTC()

	var (
		inserted    bool
		storedUser  string
		storedOp    string
		storedHash  string
		status      IdempotencyStatus
		response    []byte
		statusCode  *int
		contentType *string
		updatedAt   time.Time
	)
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET expires_at = GREATEST(sys_idempotency.expires_at, $7)
		RETURNING (xmax = 0), user_id, operation, request_hash, status, response, response_status, response_content_type, updated_at`,
		key, userID, operation, IdempotencyPending, requestHash, now, now.Add(s.ttl),
	).Scan(&inserted, &storedUser, &storedOp, &storedHash, &status, &response, &statusCode, &contentType, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if storedUser != userID || storedOp != operation || storedHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("operation", storedOp)
	}

	if status == IdempotencyDone {
		replay := &IdempotencyReplay{StatusCode: http.StatusOK, ContentType: "application/json", Body: response}
		if statusCode != nil && *statusCode != 0 {
			replay.StatusCode = *statusCode
		}
		if contentType != nil && *contentType != "" {
			replay.ContentType = *contentType
		}
		return replay, nil
	}

	if now.Sub(updatedAt) < staleAfter {
		return nil, apperror.NewIdempotencyConflict(key)
	}

	// the previous owner most likely crashed
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4`,
		now, key, IdempotencyPending, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return nil, nil
}

// Complete stores the response of an owned key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		IdempotencyDone, body, statusCode, contentType, s.now().UTC(), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets an owned key so the request can be retried.
// Used when the request failed with a retryable error.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2`, key, IdempotencyPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
