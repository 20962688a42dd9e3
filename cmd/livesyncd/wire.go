// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/tomtom215/livesync/internal/api"
	"github.com/tomtom215/livesync/internal/config"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/snapshot"
	"github.com/tomtom215/livesync/internal/subscription"
)

// openSnapshotStore opens the badger snapshot store when one is configured
// and falls back to a process-local store otherwise.
func openSnapshotStore(cfg config.RegistryConfig) (snapshot.Store, error) {
	if cfg.SnapshotPath == "" && !cfg.SnapshotInMemory {
		logging.Info().Msg("No snapshot path configured; snapshots are kept in memory")
		return snapshot.NewMemoryStore(), nil
	}
	store, err := snapshot.OpenBadger(cfg.SnapshotPath, cfg.SnapshotInMemory)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// breakerState is satisfied by *rest.BreakerClient.
type breakerState interface {
	State() string
}

// readyChecks builds the readiness checks for /health/ready.
func readyChecks(breaker breakerState, client interface{ ConnectionStatus() subscription.Status }, requirePush bool) map[string]api.ReadyCheck {
	checks := map[string]api.ReadyCheck{
		"storefront_api": func(context.Context) error {
			if breaker.State() == "open" {
				return errors.New("circuit breaker open")
			}
			return nil
		},
	}
	if requirePush {
		checks["push_channel"] = func(context.Context) error {
			st := client.ConnectionStatus()
			if st.Connected {
				return nil
			}
			if st.LastError != nil {
				return fmt.Errorf("not connected: %w", st.LastError)
			}
			return errors.New("not connected")
		}
	}
	return checks
}

// resourceFollower is satisfied by *subscription.Client.
type resourceFollower interface {
	SubscribeToResource(resourceID string, onUpdate func(subscription.Update)) func()
}

// followResources subscribes the daemon itself to the configured resources
// so they are polled for the life of the process. The returned function
// removes every subscription.
func followResources(client resourceFollower, ids []string, onUpdate func(subscription.Update)) func() {
	unsubscribes := make([]func(), 0, len(ids))
	for _, id := range ids {
		unsubscribes = append(unsubscribes, client.SubscribeToResource(id, onUpdate))
		logging.Info().Str("resource", id).Msg("Following resource")
	}
	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}

func serverAddr(cfg config.ServerConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}
