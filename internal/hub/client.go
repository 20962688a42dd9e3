// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/livesync/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Inbound message types a UI client may send.
const (
	clientTypeFilter = "filter"
)

// clientSeq orders clients by connection time for deterministic broadcast.
var clientSeq atomic.Uint64

// clientMessage is a frame received from a UI client.
type clientMessage struct {
	Type      string   `json:"type"`
	Resources []string `json:"resources,omitempty"`
}

// Client is a middleman between a UI websocket connection and the hub.
//
// A client receives every message until it sends a filter frame
// ({"type":"filter","resources":[...]}); afterwards resource updates for
// other resources are skipped. Events without a resource are always sent.
type Client struct {
	id   string
	seq  uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	mu     sync.RWMutex
	filter map[string]bool
}

// NewClient creates a client for conn.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		seq:  clientSeq.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, 256),
	}
}

// ID returns the client identifier used in logs.
func (c *Client) ID() string { return c.id }

func (c *Client) wants(resource string) bool {
	if resource == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter == nil || c.filter[resource]
}

func (c *Client) setFilter(resources []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(resources) == 0 {
		c.filter = nil
		return
	}
	c.filter = make(map[string]bool, len(resources))
	for _, r := range resources {
		c.filter[r] = true
	}
}

// readPump reads client frames until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("[hub] Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("client_id", c.id).Msg("[hub] Unexpected websocket close")
			}
			return
		}

		switch msg.Type {
		case MessageTypePing:
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		case clientTypeFilter:
			c.setFilter(msg.Resources)
			logging.Debug().Str("client_id", c.id).Strs("resources", msg.Resources).Msg("[hub] Filter updated")
		}
	}
}

// writePump writes hub messages and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("[hub] Failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logging.Debug().Err(err).Str("client_id", c.id).Msg("[hub] Write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
