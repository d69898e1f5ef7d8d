// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sellerdesk/internal/infrastructure/storage/postgres"
)

// Pinger reports database availability.
type Pinger interface {
	Ping(ctx context.Context) error
	Stats() postgres.PoolStats
}

// SessionCounter reports live selection sessions.
type SessionCounter interface {
	Len() int
}

// ConnCounter reports open websocket connections.
type ConnCounter interface {
	Total() int
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db       Pinger
	sessions SessionCounter
	conns    ConnCounter
	version  string
}

// NewHealthHandler creates a new health handler. sessions and conns may be nil.
func NewHealthHandler(db Pinger, sessions SessionCounter, conns ConnCounter, version string) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions, conns: conns, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":      "sellerdesk",
		"version":  h.version,
		"database": h.db.Stats(),
	}
	if h.sessions != nil {
		info["selection_sessions"] = h.sessions.Len()
	}
	if h.conns != nil {
		info["websocket_connections"] = h.conns.Total()
	}
	c.JSON(http.StatusOK, info)
}
