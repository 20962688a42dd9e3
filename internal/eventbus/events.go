// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package eventbus

import (
	"time"

	"github.com/tomtom215/livesync/internal/models"
)

// Event names published by the synchronization layer.
const (
	ChatMessage      = "chat_message"
	RoomStatus       = "room_status"
	RoomList         = "room_list"
	ServerError      = "error"
	ConnectionStatus = "connection_status"
)

// ChatMessageEvent is published for every visible change caused by an
// inbound or confirmed chat message.
type ChatMessageEvent struct {
	RoomID  models.ID      `json:"room_id"`
	Message models.Message `json:"message"`
	LocalID string         `json:"local_id,omitempty"`
	Outcome string         `json:"outcome"`
}

// RoomStatusEvent mirrors a room_status or room_list frame.
type RoomStatusEvent struct {
	RoomID           models.ID     `json:"room_id,omitempty"`
	Rooms            []models.Room `json:"rooms"`
	ConnectionStatus string        `json:"connection_status,omitempty"`
}

// ServerErrorEvent carries a server-reported error frame.
type ServerErrorEvent struct {
	RoomID  models.ID `json:"room_id,omitempty"`
	Message string    `json:"message"`
}

// ConnectionStatusEvent is published on every connection state change.
type ConnectionStatusEvent struct {
	Resource    string    `json:"resource"`
	State       string    `json:"state"`
	Previous    string    `json:"previous"`
	Error       string    `json:"error,omitempty"`
	UserMessage string    `json:"user_message,omitempty"`
	At          time.Time `json:"at"`
}
