// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/livesync/internal/chat"
	"github.com/tomtom215/livesync/internal/connection"
	"github.com/tomtom215/livesync/internal/models"
	"github.com/tomtom215/livesync/internal/registry"
	"github.com/tomtom215/livesync/internal/subscription"
)

// Service is the subset of the subscription client the API drives.
type Service interface {
	SubscribeToResource(resourceID string, onUpdate func(subscription.Update)) func()
	RequestRefresh(resourceID string)
	ConnectionStatus() subscription.Status
	Channels() []connection.Status
	Room(roomID models.ID) (*chat.Room, error)
	Rooms() []models.ID
	Send(ctx context.Context, roomID models.ID, content string) (chat.PendingMessage, error)
	RetrySend(ctx context.Context, roomID models.ID, localID string) (chat.PendingMessage, error)
	Reconnect(ctx context.Context, roomID models.ID) error
	Disconnect(roomID models.ID) error
}

// Store reads registry state.
type Store interface {
	Snapshot(resourceID string) (registry.Snapshot, bool)
	Resources() []string
}

// ReadyCheck reports whether one dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Service Service
	Store   Store

	// Forward receives updates for resources watched through the API,
	// normally the websocket hub.
	Forward func(subscription.Update)

	// WebSocket serves /api/v1/ws. Nil disables the route.
	WebSocket http.Handler

	// ReadyChecks are evaluated by /health/ready, keyed by name.
	ReadyChecks map[string]ReadyCheck
}

// Handler serves the local HTTP API.
type Handler struct {
	svc       Service
	store     Store
	forward   func(subscription.Update)
	ws        http.Handler
	checks    map[string]ReadyCheck
	startTime time.Time

	mu      sync.Mutex
	watches map[string]func()
}

// NewHandler creates a Handler.
func NewHandler(opts HandlerOptions) *Handler {
	forward := opts.Forward
	if forward == nil {
		forward = func(subscription.Update) {}
	}
	return &Handler{
		svc:       opts.Service,
		store:     opts.Store,
		forward:   forward,
		ws:        opts.WebSocket,
		checks:    opts.ReadyChecks,
		startTime: time.Now(),
		watches:   make(map[string]func()),
	}
}

// Close removes every API-created watch.
func (h *Handler) Close() {
	h.mu.Lock()
	watches := h.watches
	h.watches = make(map[string]func())
	h.mu.Unlock()

	for _, unsubscribe := range watches {
		if unsubscribe != nil {
			unsubscribe()
		}
	}
}

// watched returns the sorted ids of API-created watches.
func (h *Handler) watched() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.watches))
	for id := range h.watches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func resourceView(s registry.Snapshot) models.ResourceView {
	v := models.ResourceView{
		ID:        s.ResourceID,
		Loaded:    s.Loaded,
		Items:     make([]interface{}, 0, len(s.Items)),
		Listeners: s.Listeners,
		Polling:   s.Polling,
	}
	for _, item := range s.Items {
		v.Items = append(v.Items, item)
	}
	if !s.LastFetchAt.IsZero() {
		at := s.LastFetchAt
		v.LastFetchAt = &at
	}
	if s.Err != nil {
		v.Error = userMessage(s.Err)
	}
	return v
}

func channelStatus(cs connection.Status) models.ChannelStatus {
	out := models.ChannelStatus{
		Resource: cs.Resource,
		State:    cs.State.String(),
		Attempt:  cs.Attempt,
	}
	if !cs.LastHeartbeatAt.IsZero() {
		at := cs.LastHeartbeatAt
		out.LastHeartbeatAt = &at
	}
	if cs.LastError != nil {
		out.LastError = userMessage(cs.LastError)
	}
	return out
}

func connectionStatus(st subscription.Status) models.ConnectionStatus {
	out := models.ConnectionStatus{Connected: st.Connected}
	if !st.LastConnectedAt.IsZero() {
		at := st.LastConnectedAt
		out.LastConnectedAt = &at
	}
	if st.LastError != nil {
		out.LastError = userMessage(st.LastError)
	}
	return out
}
