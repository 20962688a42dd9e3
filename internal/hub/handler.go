// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/livesync/internal/logging"
)

// Handler upgrades HTTP requests and attaches them to a Hub.
type Handler struct {
	hub     *Hub
	origins []string
}

// NewHandler returns a websocket handler for hub. origins lists the allowed
// Origin header values; "*" allows any origin.
func NewHandler(hub *Hub, origins []string) *Handler {
	return &Handler{hub: hub, origins: origins}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin rejects requests without an Origin header. Browsers always
// send one on websocket upgrades.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("[hub] Websocket rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("[hub] Websocket rejected: origin not allowed")
	return false
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Debug().Err(err).Msg("[hub] Websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn)
	select {
	case h.hub.Register <- client:
	case <-h.hub.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	client.Start()
}
