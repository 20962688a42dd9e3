// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package logging provides centralized zerolog-based structured logging for livesync.
//
// JSON output is the default; console output is meant for development.
//
// # Overview
//
// The package provides:
//   - Structured logging via zerolog behind package-level helpers
//   - Context-aware logging with correlation and resource IDs
//   - An slog handler for Suture v4 (sutureslog)
//   - A watermill.LoggerAdapter for the event bus
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("resource", "orders").Msg("[registry] Fetch complete")
//	logging.Ctx(ctx).Warn().Err(err).Msg("[chat] Send failed")
//
// Components prefix messages with their name in brackets, e.g. "[transport]".
//
// # Tests
//
// NewTestLogger returns a logger writing to an io.Writer; tests that do not
// inspect output call Init with Output set to io.Discard.
package logging
