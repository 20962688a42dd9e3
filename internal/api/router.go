// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/livesync/internal/middleware"
)

// NewRouter builds the chi route tree for h.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // CORS must be global to handle OPTIONS preflight

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Not found.", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed.", nil)
	})

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// ========================
	// Core API Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/status", h.Status)

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Get("/{id}", h.GetResource)
			r.With(mw.RateLimitWrite()).Post("/{id}/refresh", h.RefreshResource)
		})

		r.Route("/watches", func(r chi.Router) {
			r.Get("/", h.ListWatches)
			r.Put("/{id}", h.WatchResource)
			r.Delete("/{id}", h.UnwatchResource)
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.ListRooms)
			r.Get("/{room}", h.GetRoom)
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimitWrite())
				r.Post("/{room}/messages", h.SendMessage)
				r.Post("/{room}/messages/{localID}/retry", h.RetryMessage)
				r.Post("/{room}/reconnect", h.ReconnectRoom)
				r.Delete("/{room}", h.DisconnectRoom)
			})
		})
	})

	// The upgrade needs the raw ResponseWriter, so /ws sits outside the
	// metrics wrapper.
	if h.ws != nil {
		r.With(mw.RateLimitWebSocket()).Get("/api/v1/ws", h.ws.ServeHTTP)
	}

	// ========================
	// Metrics
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
