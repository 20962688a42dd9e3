// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

// MaxMessageLength bounds the content of one chat message.
const MaxMessageLength = 4000

// ResourceRequest identifies a registry resource from the route.
type ResourceRequest struct {
	ResourceID string `validate:"required,resourceid"`
}

// RoomRequest identifies a chat room from the route.
type RoomRequest struct {
	RoomID string `validate:"required,resourceid"`
}

// SendMessageBody is the JSON body of POST /rooms/{room}/messages.
type SendMessageBody struct {
	Content string `json:"content"`
}

// SendMessageRequest is a validated send.
type SendMessageRequest struct {
	RoomID  string `validate:"required,resourceid"`
	Content string `validate:"notblank,max=4000"`
}

// RetryMessageRequest is a validated retry of a failed send.
type RetryMessageRequest struct {
	RoomID  string `validate:"required,resourceid"`
	LocalID string `validate:"required,localid"`
}

// PendingMessageView is the API representation of an optimistic send.
type PendingMessageView struct {
	LocalID     string `json:"local_id"`
	Content     string `json:"content"`
	ConfirmedID string `json:"confirmed_id,omitempty"`
	Failed      bool   `json:"failed"`
}
