// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package models

import (
	"bytes"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// SenderKind identifies who authored a chat message.
type SenderKind string

const (
	SenderCustomer SenderKind = "customer"
	SenderAdmin    SenderKind = "admin"
	SenderSystem   SenderKind = "system"
)

// ID is a server-issued identifier. The storefront API emits numeric ids for
// some collections and string ids for others; both decode to the same string form.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Int64 returns the numeric form of the id, if it has one.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// Message is a server-confirmed chat message.
//
// ClientID is set only when the server round-trips the local id of the
// optimistic send that produced this message.
type Message struct {
	ID         ID         `json:"id"`
	RoomID     ID         `json:"room_id"`
	SenderKind SenderKind `json:"sender_type"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	Read       bool       `json:"is_read"`
	ClientID   string     `json:"client_id,omitempty"`
}

// Room is one chat room summary as carried by room_status/room_list frames.
type Room struct {
	ID            ID         `json:"id"`
	Status        string     `json:"status,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	UnreadCount   int        `json:"unread_count,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}
