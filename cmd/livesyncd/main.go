// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/livesync/internal/api"
	"github.com/tomtom215/livesync/internal/config"
	"github.com/tomtom215/livesync/internal/eventbus"
	"github.com/tomtom215/livesync/internal/hub"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/polling"
	"github.com/tomtom215/livesync/internal/registry"
	"github.com/tomtom215/livesync/internal/rest"
	"github.com/tomtom215/livesync/internal/subscription"
	"github.com/tomtom215/livesync/internal/supervisor"
	"github.com/tomtom215/livesync/internal/supervisor/services"
)

//nolint:gocyclo // sequential wiring
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Bool("push", cfg.Transport.PushEnabled()).
		Bool("notifications", cfg.Transport.Notifications).
		Str("rest", cfg.REST.BaseURL).
		Dur("poll_interval", cfg.Polling.Interval).
		Dur("stale_threshold", cfg.Registry.StaleThreshold).
		Int("reconnect_attempts", cfg.Reconnect.MaxAttempts).
		Msg("Starting livesync")

	// === STORAGE ===

	store, err := openSnapshotStore(cfg.Registry)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing snapshot store")
		}
	}()

	reg := registry.New(registry.Options{
		StaleThreshold: cfg.Registry.StaleThreshold,
		Store:          store,
	})
	defer reg.Close()

	// === SYNC ===

	scheduler := polling.NewScheduler(reg, cfg.Polling.Interval)
	bus := eventbus.New(eventbus.Config{})
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	backend := rest.NewBreakerClient(rest.NewClient(cfg.REST))

	client := subscription.New(subscription.Options{
		Registry:  reg,
		Scheduler: scheduler,
		Events:    bus,
		Backend:   backend,
		Transport: cfg.Transport,
		Reconnect: cfg.Reconnect,
		Heartbeat: cfg.Heartbeat,
		Chat:      cfg.Chat,
	})

	wsHub := hub.New()
	stopFollowing := followResources(client, cfg.Polling.Resources, wsHub.ResourceUpdate)
	defer stopFollowing()

	// === API ===

	apiHandler := api.NewHandler(api.HandlerOptions{
		Service:     client,
		Store:       reg,
		Forward:     wsHub.ResourceUpdate,
		WebSocket:   hub.NewHandler(wsHub, cfg.Server.CORSOrigins),
		ReadyChecks: readyChecks(backend, client, cfg.Transport.Notifications && cfg.Transport.PushEnabled()),
	})
	defer apiHandler.Close()

	router := api.NewRouter(apiHandler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server)))

	server := &http.Server{
		Addr:              serverAddr(cfg.Server),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Registry.IdleEviction > 0 {
		tree.AddStoreService(services.NewSweepService(reg, 0, cfg.Registry.IdleEviction))
	}

	tree.AddSyncService(services.Named("poll-scheduler", scheduler))
	tree.AddSyncService(services.Named("subscription-client", client))
	tree.AddSyncService(services.Named("websocket-hub", wsHub))
	tree.AddSyncService(services.NewForwarderService(bus, wsHub,
		eventbus.ChatMessage,
		eventbus.RoomStatus,
		eventbus.RoomList,
		eventbus.ServerError,
		eventbus.ConnectionStatus,
	))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("livesync stopped")
}
