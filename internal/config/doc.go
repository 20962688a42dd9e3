// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package config provides configuration loading and validation for livesync.

# Configuration Sources

Configuration is layered with koanf, later sources winning:
  - Struct defaults (defaultConfig)
  - An optional YAML file: CONFIG_PATH, livesync.yaml or /etc/livesync/livesync.yaml
  - Environment variables from an explicit mapping; unmapped variables are ignored

# Configuration Structure

  - TransportConfig: push channel URL, credential, timeouts, notifications
  - ReconnectConfig: max attempts (5) and fixed delay (3s)
  - HeartbeatConfig: interval (30s) and optional missed-heartbeat timeout
  - RegistryConfig: stale threshold (5s), idle eviction, badger snapshot store
  - PollingConfig: interval (5s) and resources polled at startup
  - RESTConfig: storefront API base URL, token, retries, rate limit
  - ChatConfig: rooms, pending match window, local id map
  - ServerConfig: local HTTP surface
  - SupervisorConfig: suture failure handling
  - LoggingConfig: level, format, caller

# Environment Variables

	LIVESYNC_WS_URL         transport.url
	LIVESYNC_WS_TOKEN       transport.token
	LIVESYNC_NOTIFICATIONS  transport.notifications
	RECONNECT_MAX_ATTEMPTS  reconnect.max_attempts
	RECONNECT_DELAY         reconnect.delay
	REGISTRY_SNAPSHOT_PATH  registry.snapshot_path
	POLLING_RESOURCES       polling.resources (comma-separated)
	REST_BASE_URL           rest.base_url
	CHAT_ROOMS              chat.rooms (comma-separated)
	HTTP_PORT               server.port
	LOG_LEVEL               logging.level

See envMappings for the complete list. Validate rejects invalid URLs,
non-positive intervals and unknown log levels.
*/
package config
