package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sellerdesk/internal/core/id"
	"sellerdesk/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client is a WebSocket connection of one user on one view.
type Client struct {
	id     string
	userID string
	view   string
	conn   *websocket.Conn

	mu        sync.RWMutex
	send      chan []byte
	closed    bool
	closeOnce sync.Once
}

var _ Conn = (*Client)(nil)

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, userID, view string) *Client {
	return &Client{
		id:     id.New().String(),
		userID: userID,
		view:   view,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }
func (c *Client) View() string   { return c.view }

// Send queues data. A full buffer means the client is too slow and the
// message is dropped.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrClientClosed
	}
}

// Close is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// ReadPump reads client messages and passes them to onMessage until the
// connection drops. It blocks.
func (c *Client) ReadPump(ctx context.Context, onMessage func([]byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn(ctx, "websocket closed unexpectedly", "conn_id", c.id, "error", err)
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings. It blocks.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug(ctx, "websocket write failed", "conn_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
