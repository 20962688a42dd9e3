// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package middleware provides HTTP middleware shared by the local API.

  - RequestID: tags each request with X-Request-ID and a logging correlation ID
  - PrometheusMetrics: request count and latency, labelled by chi route pattern

Both use the standard func(http.Handler) http.Handler shape so they plug
straight into chi's r.Use:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
