package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one connected party. A client belongs to at most one trip
// room at a time.
type Client struct {
	ID   string
	Role string
	Send chan *Message

	conn   *websocket.Conn
	hub    *Hub
	logger *zap.Logger

	mu   sync.Mutex
	trip string
}

// NewClient wraps a websocket connection for the hub.
func NewClient(id string, conn *websocket.Conn, hub *Hub, role string, logger *zap.Logger) *Client {
	return &Client{
		ID:     id,
		Role:   role,
		Send:   make(chan *Message, sendBuffer),
		conn:   conn,
		hub:    hub,
		logger: logger,
	}
}

// GetTrip returns the trip room the client currently follows.
func (c *Client) GetTrip() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trip
}

func (c *Client) setTrip(tripID string) {
	c.mu.Lock()
	c.trip = tripID
	c.mu.Unlock()
}

// SendMessage queues a message without blocking. A client that cannot
// keep up is disconnected rather than stalling the hub.
func (c *Client) SendMessage(msg *Message) {
	select {
	case c.Send <- msg:
	default:
		c.logger.Warn("client send buffer full, dropping connection",
			zap.String("client_id", c.ID))
		// Never block the caller: if the hub loop is busy, the read pump's
		// close path unregisters the client instead.
		select {
		case c.hub.Unregister <- c:
		default:
			c.conn.Close()
		}
	}
}

// ReadPump reads inbound frames and routes them through the hub's
// handlers. Returns when the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed",
					zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		c.hub.HandleMessage(c, &msg)
	}
}

// WritePump flushes the send channel to the connection and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
