// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package api provides the local HTTP API of the livesync daemon.

The API is a thin view over the subscription client and the resource
registry. Reads are always served from the registry and never trigger a
fetch; writes (refresh, send, retry, reconnect) go through the client.

Key Components:

  - Router: chi route tree with request ids, CORS, httprate limits and
    Prometheus request metrics
  - Handler: request handlers, driven through the Service and Store interfaces
  - Response formatting: the models.APIResponse envelope with metadata
  - Error mapping: syncerr kinds and sentinel errors to HTTP status codes,
    always with a human-readable message

Endpoints:

	GET    /api/v1/health/live
	GET    /api/v1/health/ready
	GET    /api/v1/status
	GET    /api/v1/resources/
	GET    /api/v1/resources/{id}
	POST   /api/v1/resources/{id}/refresh
	GET    /api/v1/watches/
	PUT    /api/v1/watches/{id}
	DELETE /api/v1/watches/{id}
	GET    /api/v1/rooms/
	GET    /api/v1/rooms/{room}
	POST   /api/v1/rooms/{room}/messages
	POST   /api/v1/rooms/{room}/messages/{localID}/retry
	POST   /api/v1/rooms/{room}/reconnect
	DELETE /api/v1/rooms/{room}
	GET    /api/v1/ws
	GET    /metrics

Watches let websocket clients follow a resource without a local consumer:
PUT subscribes on the daemon's behalf and every update is forwarded to the
hub until DELETE.

Error responses:

	{
	  "status": "error",
	  "error": {
	    "code": "SEND_FAILURE",
	    "message": "Message could not be sent. Please retry.",
	    "details": {"local_id": "temp_1700000000000", "kind": "send_failure", "retryable": true}
	  }
	}
*/
package api
