// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package supervisor provides process supervision for the livesync daemon using
suture v4.

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("livesync")
	├── StoreSupervisor ("store-layer")
	│   └── SweepService (registry idle sweeps, when enabled)
	├── SyncSupervisor ("sync-layer")
	│   ├── poll scheduler
	│   ├── subscription client
	│   ├── websocket hub
	│   └── ForwarderService (event bus to hub)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. Each layer counts its
own failures, so a crashing push channel does not take the HTTP API down.
Supervisor events are logged through sutureslog, bridged to zerolog by
logging.NewSlogLogger.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddSyncService(services.Named("poll-scheduler", scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree exited")
	}

	if report, _ := tree.UnstoppedServiceReport(); len(report) > 0 {
	    logging.Warn().Int("count", len(report)).Msg("Services did not stop in time")
	}

See the services subpackage for the wrappers.
*/
package supervisor
