// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in priority order.
var DefaultConfigPaths = []string{
	"livesync.yaml",
	"livesync.yml",
	"/etc/livesync/livesync.yaml",
	"/etc/livesync/livesync.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config populated with defaults.
// Timings mirror the storefront client: 5s staleness and polling, 3s fixed
// reconnect delay with 5 attempts, 30s heartbeat.
func defaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			URL:               "",
			RequireCredential: true,
			HandshakeTimeout:  10 * time.Second,
			ReadTimeout:       0,
			WriteTimeout:      10 * time.Second,
			MaxMessageSize:    512 * 1024,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			Delay:       3 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Interval: 30 * time.Second,
			Timeout:  0,
		},
		Registry: RegistryConfig{
			StaleThreshold: 5 * time.Second,
			IdleEviction:   0,
		},
		Polling: PollingConfig{
			Interval:  5 * time.Second,
			Resources: []string{},
		},
		REST: RESTConfig{
			Timeout:        15 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			RateLimit:      10,
			RateBurst:      20,
		},
		Chat: ChatConfig{
			Rooms:       []string{},
			MatchWindow: 30 * time.Second,
			IDMapSize:   1000,
			IDMapTTL:    10 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8787,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults from defaultConfig()
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"polling.resources",
	"chat.rooms",
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so the process environment cannot pollute config.
var envMappings = map[string]string{
	// Transport
	"livesync_ws_url":             "transport.url",
	"livesync_ws_token":           "transport.token",
	"livesync_require_credential": "transport.require_credential",
	"livesync_handshake_timeout":  "transport.handshake_timeout",
	"livesync_read_timeout":       "transport.read_timeout",
	"livesync_write_timeout":      "transport.write_timeout",
	"livesync_max_message_size":   "transport.max_message_size",
	"livesync_notifications":      "transport.notifications",

	// Reconnect / heartbeat
	"reconnect_max_attempts": "reconnect.max_attempts",
	"reconnect_delay":        "reconnect.delay",
	"heartbeat_interval":     "heartbeat.interval",
	"heartbeat_timeout":      "heartbeat.timeout",

	// Registry / polling
	"registry_stale_threshold":    "registry.stale_threshold",
	"registry_idle_eviction":      "registry.idle_eviction",
	"registry_snapshot_path":      "registry.snapshot_path",
	"registry_snapshot_in_memory": "registry.snapshot_in_memory",
	"polling_interval":            "polling.interval",
	"polling_resources":           "polling.resources",

	// REST collaborator
	"rest_base_url":         "rest.base_url",
	"rest_token":            "rest.token",
	"rest_timeout":          "rest.timeout",
	"rest_max_retries":      "rest.max_retries",
	"rest_retry_base_delay": "rest.retry_base_delay",
	"rest_rate_limit":       "rest.rate_limit",
	"rest_rate_burst":       "rest.rate_burst",

	// Chat
	"chat_rooms":        "chat.rooms",
	"chat_match_window": "chat.match_window",
	"chat_id_map_size":  "chat.id_map_size",
	"chat_id_map_ttl":   "chat.id_map_ttl",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - LIVESYNC_WS_URL -> transport.url
//   - RECONNECT_MAX_ATTEMPTS -> reconnect.max_attempts
//   - POLLING_RESOURCES -> polling.resources
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
