// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package config loads Livesync configuration with Koanf v2.
//
// Configuration Loading Order:
//  1. Defaults: Built-in values matching the storefront's original client timings
//  2. Config File: Optional YAML file (livesync.yaml or CONFIG_PATH)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Transport  TransportConfig  `koanf:"transport"`
	Reconnect  ReconnectConfig  `koanf:"reconnect"`
	Heartbeat  HeartbeatConfig  `koanf:"heartbeat"`
	Registry   RegistryConfig   `koanf:"registry"`
	Polling    PollingConfig    `koanf:"polling"`
	REST       RESTConfig       `koanf:"rest"`
	Chat       ChatConfig       `koanf:"chat"`
	Server     ServerConfig     `koanf:"server"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// TransportConfig configures the push channel (chat rooms and admin notifications).
type TransportConfig struct {
	URL               string        `koanf:"url"`                // ws:// or wss:// base URL; empty disables push
	Token             string        `koanf:"token"`              // Bearer credential for the channel
	RequireCredential bool          `koanf:"require_credential"` // Fail with Unauthorized when Token is empty
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`       // 0 disables the inbound idle deadline
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	MaxMessageSize    int64         `koanf:"max_message_size"`
	Notifications     bool          `koanf:"notifications"` // open the admin notification channel
}

// PushEnabled reports whether a push channel can be attempted at all.
func (t TransportConfig) PushEnabled() bool {
	return t.URL != ""
}

// ReconnectConfig configures the fixed-delay reconnection policy.
type ReconnectConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Delay       time.Duration `koanf:"delay"`
}

// HeartbeatConfig configures the liveness heartbeat on open channels.
type HeartbeatConfig struct {
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"` // 0 disables missed-heartbeat detection
}

// RegistryConfig configures the resource registry cache.
type RegistryConfig struct {
	StaleThreshold   time.Duration `koanf:"stale_threshold"`
	IdleEviction     time.Duration `koanf:"idle_eviction"` // 0 keeps idle entries forever
	SnapshotPath     string        `koanf:"snapshot_path"` // empty disables the badger snapshot store
	SnapshotInMemory bool          `koanf:"snapshot_in_memory"`
}

// PollingConfig configures the polling scheduler.
type PollingConfig struct {
	Interval  time.Duration `koanf:"interval"`
	Resources []string      `koanf:"resources"` // admin resources polled at startup (e.g. orders, inquiries)
}

// RESTConfig configures the request/response collaborator used for fetches
// and for the confirmed-write fallback path.
type RESTConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Token          string        `koanf:"token"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	RateLimit      float64       `koanf:"rate_limit"` // requests per second
	RateBurst      int           `koanf:"rate_burst"`
}

// ChatConfig configures chat rooms and message reconciliation.
type ChatConfig struct {
	Rooms       []string      `koanf:"rooms"`
	MatchWindow time.Duration `koanf:"match_window"`
	IDMapSize   int           `koanf:"id_map_size"`
	IDMapTTL    time.Duration `koanf:"id_map_ttl"`
}

// ServerConfig configures the local HTTP/WebSocket surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SupervisorConfig configures the suture supervisor tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
