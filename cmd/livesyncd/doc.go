// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Command livesyncd runs the storefront live synchronization daemon.

It keeps admin resources (orders, inquiries) fresh by polling the storefront
REST API, holds chat room sessions over push channels with polling fallback,
and exposes the synchronized state over a local HTTP API and a websocket
feed for browser UIs.

# Application Architecture

	RootSupervisor ("livesync")
	├── StoreSupervisor ("store-layer")
	│   └── registry-sweeper (REGISTRY_IDLE_EVICTION > 0)
	├── SyncSupervisor ("sync-layer")
	│   ├── poll-scheduler
	│   ├── subscription-client (rooms, admin notifications)
	│   ├── websocket-hub
	│   └── event-forwarder
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 (defaults, livesync.yaml, environment)
 2. Logging: zerolog
 3. Snapshot store: BadgerDB warm cache (optional)
 4. Registry, poll scheduler, event bus
 5. REST client behind a gobreaker circuit breaker
 6. Subscription client, websocket hub
 7. HTTP API (chi) and the supervisor tree

# Configuration

Highest priority wins:
  - Environment variables (TRANSPORT_URL, REST_BASE_URL, POLLING_RESOURCES, ...)
  - Config file (livesync.yaml or CONFIG_PATH)
  - Built-in defaults (3s reconnect delay, 5 attempts, 5s poll interval,
    5s stale threshold)

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
SERVER_SHUTDOWN_TIMEOUT, every channel is closed with a normal closure and
pending reconnections are cancelled.

# Example Usage

	export REST_BASE_URL=https://shop.example.com/api
	export REST_TOKEN=...
	export TRANSPORT_URL=wss://shop.example.com/ws
	export TRANSPORT_TOKEN=...
	export POLLING_RESOURCES=orders,inquiries
	export CHAT_ROOMS=42
	./livesyncd
*/
package main
