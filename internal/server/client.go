// Package server client: one authenticated WebSocket connection, its
// read/write pumps, and per-connection event dispatch.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long the peer may stay silent before the read fails.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
)

// Client is a live, authenticated connection. Its identity is bound once by
// the connection gate and never changes for the connection's lifetime.
type Client struct {
	id       string
	userID   int64
	username string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	addr string

	// closed is guarded by the directory's lock.
	closed bool

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient wraps an upgraded connection with the resolved identity. The
// send channel is buffered so slow readers do not stall delivery.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, userID int64, username string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		userID:         userID,
		username:       username,
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// GetSendChan exposes the outbound channel for tests and the write pump.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// UserID returns the user bound to this connection.
func (c *Client) UserID() int64 {
	return c.userID
}

// Username returns the display name bound to this connection.
func (c *Client) Username() string {
	return c.username
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Warn(c.hub.ctx, "setting read deadline failed", "conn_id", c.id, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// handleReadError reports whether the read loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.hub.logger.Warn(c.hub.ctx, "frame exceeded size limit",
			"conn_id", c.id, "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.hub.logger.Debug(c.hub.ctx, "client closed connection", "conn_id", c.id, "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.hub.logger.Debug(c.hub.ctx, "connection closed", "conn_id", c.id, "error", err)
	default:
		c.hub.logger.Warn(c.hub.ctx, "websocket read error", "conn_id", c.id, "error", err)
	}
	return true
}

func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.hub.logger.Warn(c.hub.ctx, "rate limit exceeded, event discarded",
			"conn_id", c.id, "user_id", c.userID,
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processEvent decodes one inbound frame and routes it through the hub's
// dispatch table. Taxonomy failures are reported back to this connection
// only; the connection stays open.
func (c *Client) processEvent(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.hub.logger.Warn(c.hub.ctx, "malformed event frame", "conn_id", c.id, "error", err)
		c.sendError("invalid event format")
		return
	}

	handler, ok := c.hub.handlers[env.Event]
	if !ok {
		c.hub.logger.Debug(c.hub.ctx, "unhandled event", "conn_id", c.id, "event", env.Event)
		return
	}

	if err := handler(c.hub.ctx, c, env.Data); err != nil {
		c.reportError(err)
	}
}

// reportError maps a handler failure onto an error event for the sender.
func (c *Client) reportError(err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		c.sendError(string(validationErr.Reason))
		return
	}

	var persistenceErr *PersistenceError
	if errors.As(err, &persistenceErr) {
		c.hub.logger.Error(c.hub.ctx, "message persistence failed",
			"conn_id", c.id, "user_id", c.userID, "error", persistenceErr.Cause)
		c.sendError("Failed to send message")
		return
	}

	c.hub.logger.Error(c.hub.ctx, "event handling failed", "conn_id", c.id, "error", err)
	c.sendError("Failed to process event")
}

// sendError emits an error event to this connection only.
func (c *Client) sendError(message string) {
	frame, err := encodeEvent(EventError, ErrorPayload{Message: message})
	if err != nil {
		c.hub.logger.Error(c.hub.ctx, "encoding error event failed", "error", err)
		return
	}
	c.hub.deliverToClient(c, frame)
}

// readPump reads frames until the connection dies, handling each event
// inline so a connection's events are processed strictly in arrival order.
// Teardown funnels through the hub's unregister channel.
func (c *Client) readPump() {
	defer func() {
		// During shutdown the hub loop is gone; teardown already happened
		// there, so skip the funnel instead of blocking on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processEvent(raw)
	}
}

// writePump drains the send channel onto the transport and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeMessage(message, ok) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeMessage writes one frame per queued payload; a closed send channel
// triggers the close handshake.
func (c *Client) writeMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.hub.logger.Debug(c.hub.ctx, "writing close frame failed", "conn_id", c.id, "error", err)
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.hub.logger.Debug(c.hub.ctx, "write failed", "conn_id", c.id, "error", err)
		return false
	}

	// Drain anything already queued; each payload stays its own frame so the
	// client parses one envelope per message.
	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return false
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, queued); err != nil {
			return false
		}
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		return false
	}
	return true
}

// closeConnection is safe to call multiple times and with a nil transport.
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.hub.logger.Debug(c.hub.ctx, "closing connection failed", "conn_id", c.id, "error", err)
	}
}
