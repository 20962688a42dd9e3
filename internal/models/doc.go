// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package models defines data structures shared by the sync layer and its HTTP surface.

Key Components:

  - Message: server-confirmed chat message (id, room, sender kind, content, read flag)
  - Room: chat room summary carried by room_status and room_list frames
  - ID: server identifier that decodes from either a JSON string or number
  - APIResponse / APIError / Metadata: standard response envelope for the local API
  - ResourceView / StatusResponse: API views of registry entries and channel state

JSON encoding uses github.com/goccy/go-json throughout.
*/
package models
