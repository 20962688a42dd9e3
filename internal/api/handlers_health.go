// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/livesync/internal/models"
)

const readyCheckTimeout = 2 * time.Second

// HealthLive is the liveness check. It succeeds while the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the readiness check. It returns 503 when any configured
// check fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"checks":         checks,
			"ready_to_serve": ready,
			"uptime":         time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Status reports the aggregated connection status, every push channel and
// the tracked resources.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	channels := h.svc.Channels()
	resp := models.StatusResponse{
		Connection: connectionStatus(h.svc.ConnectionStatus()),
		Channels:   make([]models.ChannelStatus, 0, len(channels)),
		Resources:  h.store.Resources(),
	}
	for _, cs := range channels {
		resp.Channels = append(resp.Channels, channelStatus(cs))
	}
	if resp.Resources == nil {
		resp.Resources = []string{}
	}
	respondSuccess(w, http.StatusOK, resp)
}
