package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerdesk/internal/core/apperror"
	appctx "sellerdesk/internal/core/context"
	"sellerdesk/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("signature is invalid")
	}
	return &appctx.UserContext{
		UserID:      "u-1",
		SellerID:    "s-1",
		Permissions: []string{"listings:read"},
	}, nil
}

func withUser(user *appctx.UserContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func whoami(c *gin.Context) {
	user := appctx.GetUser(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user": user.UserID, "seller": user.SellerID})
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Auth(fakeValidator{}))
	r.GET("/me", whoami)

	tests := []struct {
		name   string
		header string
		query  string
		ws     bool
		status int
	}{
		{"missing token", "", "", false, http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", false, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", "", false, http.StatusUnauthorized},
		{"bearer", "Bearer good", "", false, http.StatusOK},
		{"lowercase scheme", "bearer good", "", false, http.StatusOK},
		{"query token ignored for plain requests", "", "?access_token=good", false, http.StatusUnauthorized},
		{"query token on websocket upgrade", "", "?access_token=good", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.ws {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user":"u-1","seller":"s-1"}`, rec.Body.String())
			} else {
				assert.Equal(t, apperror.CodeUnauthorized, decodeError(t, rec).Code)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name   string
		user   *appctx.UserContext
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"missing permission", &appctx.UserContext{UserID: "u", Permissions: []string{"listings:read"}}, http.StatusForbidden},
		{"has one of", &appctx.UserContext{UserID: "u", Permissions: []string{"bulk:export"}}, http.StatusOK},
		{"admin", &appctx.UserContext{UserID: "u", IsAdmin: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			if tt.user != nil {
				r.Use(withUser(tt.user))
			}
			r.GET("/x", RequirePermission("bulk:execute", "bulk:export"), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

type fakeLimiter struct {
	allow bool
	keys  []string
}

func (f *fakeLimiter) Allow(key string) (bool, time.Duration) {
	f.keys = append(f.keys, key)
	return f.allow, 2 * time.Second
}

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	r := gin.New()
	r.Use(ErrorHandler(), withUser(&appctx.UserContext{UserID: "u-7"}), RateLimit(limiter))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, apperror.CodeRateLimited, decodeError(t, rec).Code)

	limiter.allow = true
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"user:u-7", "user:u-7"}, limiter.keys)
}

type fakeIdempotencyStore struct {
	mu        sync.Mutex
	pending   map[string]bool
	done      map[string]*postgres.IdempotencyReplay
	hashes    map[string]string
	released  []string
	acquireFn func(key string) error
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{
		pending: make(map[string]bool),
		done:    make(map[string]*postgres.IdempotencyReplay),
		hashes:  make(map[string]string),
	}
}

func (f *fakeIdempotencyStore) Acquire(_ context.Context, key, _, _, hash string) (*postgres.IdempotencyReplay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireFn != nil {
		if err := f.acquireFn(key); err != nil {
			return nil, err
		}
	}
	if h, ok := f.hashes[key]; ok && h != hash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if replay, ok := f.done[key]; ok {
		return replay, nil
	}
	if f.pending[key] {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	f.pending[key] = true
	f.hashes[key] = hash
	return nil, nil
}

func (f *fakeIdempotencyStore) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, key)
	f.done[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: contentType, Body: append([]byte(nil), body...)}
	return nil
}

func (f *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, key)
	delete(f.hashes, key)
	f.released = append(f.released, key)
	return nil
}

func newIdempotencyRouter(store IdempotencyStore) (*gin.Engine, *int) {
	calls := 0
	r := gin.New()
	r.Use(ErrorHandler(), withUser(&appctx.UserContext{UserID: "u-1"}), Idempotency(store))
	r.POST("/ok", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})
	r.POST("/invalid", func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewValidation("bad input"))
	})
	r.POST("/boom", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return r, &calls
}

func post(r http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	r, calls := newIdempotencyRouter(store)

	first := post(r, "/ok", "k-1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.JSONEq(t, `{"call":1}`, first.Body.String())

	second := post(r, "/ok", "k-1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, `{"call":1}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, *calls)
}

func TestIdempotency_DifferentBodyIsRejected(t *testing.T) {
	store := newFakeIdempotencyStore()
	r, calls := newIdempotencyRouter(store)

	require.Equal(t, http.StatusCreated, post(r, "/ok", "k-1", `{"a":1}`).Code)
	rec := post(r, "/ok", "k-1", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, *calls)
}

func TestIdempotency_FailuresReleaseKey(t *testing.T) {
	store := newFakeIdempotencyStore()
	r, calls := newIdempotencyRouter(store)

	rec := post(r, "/invalid", "k-2", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post(r, "/boom", "k-3", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"k-2", "k-3"}, store.released)

	// a released key runs again
	post(r, "/boom", "k-3", `{}`)
	assert.Equal(t, 3, *calls)
}

func TestIdempotency_PassThrough(t *testing.T) {
	store := newFakeIdempotencyStore()
	r, calls := newIdempotencyRouter(store)

	post(r, "/ok", "", `{}`)
	post(r, "/ok", "", `{}`)
	assert.Equal(t, 2, *calls)
	assert.Empty(t, store.done)
}

func TestIdempotency_Rejections(t *testing.T) {
	store := newFakeIdempotencyStore()
	r, calls := newIdempotencyRouter(store)

	rec := post(r, "/ok", strings.Repeat("k", maxIdempotencyKeyLength+1), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.acquireFn = func(string) error { return errors.New("connection refused") }
	rec = post(r, "/ok", "k-9", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, rec).Code)
	assert.Zero(t, *calls)
}
