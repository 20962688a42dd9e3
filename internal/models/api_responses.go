// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package models

import (
	"time"
)

// APIResponse represents a standardized API response wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "UNAUTHORIZED",
//	    "message": "Your session has expired. Please sign in again."
//	  },
//	  "metadata": {"timestamp": "2026-01-28T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
//
// Cached is set when a resource read was served from the registry without a fetch.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"cached,omitempty"`
}

// APIError represents an error response with structured error details.
//
// Message is always human-readable; protocol codes go in Details.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - NOT_FOUND: Resource or room is not tracked
//   - UNAUTHORIZED / FORBIDDEN / ROOM_NOT_FOUND: terminal channel failures
//   - SEND_FAILURE: Message could not be delivered (retryable)
//   - RATE_LIMIT_EXCEEDED: Too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ResourceView is the API representation of a registry entry.
//
// Loaded distinguishes "no data yet" from "fetched, empty"; Error is set
// independently of Items so stale-but-present data stays visible.
type ResourceView struct {
	ID          string        `json:"id"`
	Loaded      bool          `json:"loaded"`
	Items       []interface{} `json:"items"`
	LastFetchAt *time.Time    `json:"last_fetch_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	Listeners   int           `json:"listeners"`
	Polling     bool          `json:"polling"`
}

// ConnectionStatus is the consumer-facing connection summary.
type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// ChannelStatus describes one push channel for the status endpoint.
type ChannelStatus struct {
	Resource        string     `json:"resource"`
	State           string     `json:"state"`
	Attempt         int        `json:"attempt"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Connection ConnectionStatus `json:"connection"`
	Channels   []ChannelStatus  `json:"channels"`
	Resources  []string         `json:"resources"`
}
