// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/klaxonhq/klaxon/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB

	// sendBufferSize bounds per-client outbound buffering; overflow marks
	// the client for disconnect rather than stalling the hub.
	sendBufferSize = 256
)

// clientIDCounter generates unique, monotonically increasing IDs so the hub
// can iterate clients in a deterministic order during fan-out.
var clientIDCounter atomic.Uint64

// Client sits between one websocket connection and the hub.
type Client struct {
	// id orders clients deterministically; assigned from an atomic counter.
	id           uint64
	connectionID string
	hub          *Hub
	conn         *websocket.Conn

	// mu guards send against the close: deliver runs on whichever
	// goroutine handled the command, while the hub closes evicted
	// clients from its own loop.
	mu     sync.Mutex
	closed bool
	send   chan ServerMessage
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:           clientIDCounter.Add(1),
		connectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		send:         make(chan ServerMessage, sendBufferSize),
	}
}

// ConnectionID returns the identifier shared with the client in the
// connected greeting.
func (c *Client) ConnectionID() string {
	return c.connectionID
}

// Start registers the client with the hub and begins pumping. The connected
// greeting is queued before registration so it precedes any broadcast.
func (c *Client) Start() {
	greeting := newMessage(MessageConnected)
	greeting.ConnectionID = c.connectionID
	c.send <- greeting

	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// deliver queues a message for the client without blocking. Returns false
// when the buffer is full, which the hub treats as a dead client, or when
// the client has already been closed.
func (c *Client) deliver(msg ServerMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel exactly once. Only the hub calls
// this; the mutex keeps it ordered against in-flight deliver calls.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump reads client commands and hands them to the hub. One goroutine
// per connection; exits on read error or close.
func (c *Client) readPump() {
	defer func() {
		// The hub loop may already be gone during shutdown; do not block
		// on a channel nobody is draining.
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		err := c.conn.ReadJSON(&cmd)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}
		c.hub.handleCommand(c, cmd)
	}
}

// writePump writes queued messages and pings to the connection. One
// goroutine per connection; a closed send channel means the hub dropped us
// and triggers a normal-closure notice.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
