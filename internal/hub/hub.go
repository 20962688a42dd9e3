// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package hub

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/livesync/internal/eventbus"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/subscription"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types sent to UI clients. Bus events keep their event name as type.
const (
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeResourceUpdate = "resource_update"
)

// Message is one frame sent to a UI client.
type Message struct {
	Type     string      `json:"type"`
	Resource string      `json:"resource,omitempty"`
	Data     interface{} `json:"data"`
}

// ResourceUpdateData is the payload of a resource_update message.
type ResourceUpdateData struct {
	Loaded      bool              `json:"loaded"`
	Items       []json.RawMessage `json:"items"`
	Error       string            `json:"error,omitempty"`
	UserMessage string            `json:"user_message,omitempty"`
}

// Hub maintains the set of active UI clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Hub. RunWithContext must be running for clients to be
// registered and messages delivered.
func New() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// RunWithContext runs the hub until ctx is done, then closes every client.
// It implements suture.Service.
//
// Shutdown is checked first, then client lifecycle events, then broadcasts,
// so client state is always consistent before a message is delivered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Str("client_id", client.id).Msg("[hub] Client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Str("client_id", client.id).Msg("[hub] Client disconnected")
}

// logGracefulShutdown closes every client and logs the shutdown. The
// context error is not logged as an error; cancellation is expected here.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.doneOnce.Do(func() { close(h.done) })
	h.closeAllClients()

	logging.Info().
		Str("component", "hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("[hub] Stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients sends message to every client in connection order.
// Clients whose buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedLocked()
	var toRemove []*Client
	for _, client := range clients {
		if !client.wants(message.Resource) {
			continue
		}
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Str("client_id", client.id).Msg("[hub] Slow client dropped")
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.sortedLocked() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

func (h *Hub) sortedLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].seq < clients[j].seq })
	return clients
}

// Broadcast queues a message for every interested client. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("message_type", msg.Type).Str("resource", msg.Resource).
			Msg("[hub] Broadcast queue full, dropping message")
	}
}

// ResourceUpdate forwards a resource update. It matches the
// subscription update callback signature.
func (h *Hub) ResourceUpdate(u subscription.Update) {
	data := ResourceUpdateData{Loaded: u.Loaded, Items: u.Items, UserMessage: u.UserMessage}
	if data.Items == nil {
		data.Items = []json.RawMessage{}
	}
	if u.Err != nil {
		data.Error = u.Err.Error()
	}
	h.Broadcast(Message{Type: MessageTypeResourceUpdate, Resource: u.Resource, Data: data})
}

// Event forwards a bus event under its own name. It matches the
// subscription event callback signature.
func (h *Hub) Event(e eventbus.Event) {
	h.Broadcast(Message{Type: e.Name, Data: e.Payload})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
