// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/livesync/internal/logging"
)

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}

	if err := c.validateReconnect(); err != nil {
		return err
	}

	if err := c.validateRegistry(); err != nil {
		return err
	}

	if err := c.validateREST(); err != nil {
		return err
	}

	if err := c.validateChat(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateTransport validates the push channel (only if a URL is configured)
func (c *Config) validateTransport() error {
	if !c.Transport.PushEnabled() {
		return nil // push is optional; polling covers every resource
	}
	if err := validateWSURL(c.Transport.URL, "LIVESYNC_WS_URL"); err != nil {
		return fmt.Errorf("LIVESYNC_WS_URL is invalid: %w", err)
	}
	if c.Transport.HandshakeTimeout <= 0 {
		return fmt.Errorf("LIVESYNC_HANDSHAKE_TIMEOUT must be positive")
	}
	if c.Transport.WriteTimeout <= 0 {
		return fmt.Errorf("LIVESYNC_WRITE_TIMEOUT must be positive")
	}
	if c.Transport.MaxMessageSize <= 0 {
		return fmt.Errorf("LIVESYNC_MAX_MESSAGE_SIZE must be positive")
	}
	return nil
}

// validateReconnect validates reconnection and heartbeat timings
func (c *Config) validateReconnect() error {
	if c.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be >= 1, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive")
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.Heartbeat.Timeout < 0 {
		return fmt.Errorf("HEARTBEAT_TIMEOUT must be >= 0")
	}
	if c.Heartbeat.Timeout > 0 && c.Heartbeat.Timeout < c.Heartbeat.Interval {
		return fmt.Errorf("HEARTBEAT_TIMEOUT (%v) must not be shorter than HEARTBEAT_INTERVAL (%v)",
			c.Heartbeat.Timeout, c.Heartbeat.Interval)
	}
	return nil
}

// validateRegistry validates cache staleness and polling intervals
func (c *Config) validateRegistry() error {
	if c.Registry.StaleThreshold <= 0 {
		return fmt.Errorf("REGISTRY_STALE_THRESHOLD must be positive")
	}
	if c.Registry.IdleEviction < 0 {
		return fmt.Errorf("REGISTRY_IDLE_EVICTION must be >= 0")
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("POLLING_INTERVAL must be positive")
	}
	for _, id := range c.Polling.Resources {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("POLLING_RESOURCES must not contain empty entries")
		}
	}
	return nil
}

// validateREST validates the REST collaborator
func (c *Config) validateREST() error {
	if c.REST.BaseURL == "" {
		return fmt.Errorf("REST_BASE_URL is required")
	}
	if err := validateHTTPURL(c.REST.BaseURL, "REST_BASE_URL"); err != nil {
		return fmt.Errorf("REST_BASE_URL is invalid: %w", err)
	}
	if c.REST.Timeout <= 0 {
		return fmt.Errorf("REST_TIMEOUT must be positive")
	}
	if c.REST.MaxRetries < 0 {
		return fmt.Errorf("REST_MAX_RETRIES must be >= 0")
	}
	if c.REST.RateLimit <= 0 {
		return fmt.Errorf("REST_RATE_LIMIT must be positive")
	}
	if c.REST.RateBurst < 1 {
		return fmt.Errorf("REST_RATE_BURST must be >= 1")
	}
	return nil
}

// validateChat validates chat reconciliation settings
func (c *Config) validateChat() error {
	if c.Chat.MatchWindow <= 0 {
		return fmt.Errorf("CHAT_MATCH_WINDOW must be positive")
	}
	if c.Chat.IDMapSize < 1 {
		return fmt.Errorf("CHAT_ID_MAP_SIZE must be >= 1")
	}
	return nil
}

// validateServer validates the local HTTP surface
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 1")
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// validateLogging validates the logging configuration
func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format == "" {
		return nil
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
