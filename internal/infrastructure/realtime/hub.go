package realtime

import (
	"context"
	"errors"
	"sync"

	"sellerdesk/internal/domain/bulk"
	"sellerdesk/pkg/logger"
)

// ErrClientClosed is returned when sending to a closed or saturated client.
var ErrClientClosed = errors.New("client is closed")

// Conn is one connected tab.
type Conn interface {
	ID() string
	UserID() string
	View() string
	Send(data []byte) error
	Close() error
}

// Hub tracks connections per user. It is safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[string]Conn
}

var _ bulk.Notifier = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{users: make(map[string]map[string]Conn)}
}

// Register adds c.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.users[c.UserID()]
	if conns == nil {
		conns = make(map[string]Conn)
		h.users[c.UserID()] = conns
	}
	conns[c.ID()] = c
}

// Unregister removes c. Unknown connections are ignored.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.users[c.UserID()]
	if !ok {
		return
	}
	delete(conns, c.ID())
	if len(conns) == 0 {
		delete(h.users, c.UserID())
	}
}

// targets returns the user's connections, limited to view unless it is empty.
func (h *Hub) targets(userID, view string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Conn, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		if view == "" || c.View() == view {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast sends event to the user's connections on event.View, or to all
// of them when the event has no view. It returns the number of connections
// that accepted the message.
func (h *Hub) Broadcast(ctx context.Context, userID string, event Event) int {
	data, err := event.ToJSON()
	if err != nil {
		logger.Error(ctx, "serialize realtime event", "type", event.Type, "error", err)
		return 0
	}

	sent := 0
	for _, c := range h.targets(userID, event.View) {
		if err := c.Send(data); err != nil {
			logger.Debug(ctx, "drop realtime message", "conn_id", c.ID(), "error", err)
			continue
		}
		sent++
	}
	return sent
}

// BulkCompleted implements bulk.Notifier.
func (h *Hub) BulkCompleted(ctx context.Context, _, userID string, res *bulk.Result) {
	if userID == "" {
		return
	}
	h.Broadcast(ctx, userID, NewEvent(TypeBulkCompleted, "", res))
}

// ConnCount returns the number of connections of userID.
func (h *Hub) ConnCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Total returns the number of connections.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.users {
		n += len(conns)
	}
	return n
}
