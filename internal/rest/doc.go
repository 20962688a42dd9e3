// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package rest is the request/response collaborator of the sync layer.

It serves two purposes:
  - Fetching resources for the registry and the polling scheduler
    (Client.FetchFunc adapts a path to a registry.FetchFunc).
  - The confirmed-write path for chat messages when the push channel is
    not Open (PostMessage), plus room history (RoomHistory).

Resilience:
  - Token bucket throttling (golang.org/x/time/rate)
  - HTTP 429 retries with exponential backoff honoring Retry-After
  - BreakerClient wraps every call in a sony/gobreaker circuit breaker

A 404 is returned as a *StatusError whose IsNotFound reports true so
callers can render it as an empty list.
*/
package rest
