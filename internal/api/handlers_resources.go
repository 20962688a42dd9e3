// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/models"
	"github.com/tomtom215/livesync/internal/subscription"
)

// resourceParam extracts and validates the {id} route parameter.
func resourceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	req := ResourceRequest{ResourceID: chi.URLParam(r, "id")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return "", false
	}
	return req.ResourceID, true
}

// ListResources returns every tracked resource.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	ids := h.store.Resources()
	views := make([]models.ResourceView, 0, len(ids))
	for _, id := range ids {
		if snap, ok := h.store.Snapshot(id); ok {
			views = append(views, resourceView(snap))
		}
	}
	respondSuccess(w, http.StatusOK, views)
}

// GetResource returns the cached state of one resource. It never fetches;
// Metadata.Cached is always set because the registry is the source.
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceParam(w, r)
	if !ok {
		return
	}

	snap, found := h.store.Snapshot(id)
	if !found {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Resource is not tracked.", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     resourceView(snap),
		Metadata: models.Metadata{Timestamp: time.Now(), Cached: true},
	})
}

// RefreshResource starts an out-of-band fetch. The result reaches
// subscribers, so the response is 202 Accepted.
func (h *Handler) RefreshResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceParam(w, r)
	if !ok {
		return
	}
	if _, found := h.store.Snapshot(id); !found {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Resource is not tracked.", nil)
		return
	}

	h.svc.RequestRefresh(id)
	respondSuccess(w, http.StatusAccepted, map[string]interface{}{
		"resource":   id,
		"refreshing": true,
	})
}

// WatchResource subscribes the daemon to a resource on behalf of websocket
// clients. Updates are forwarded until UnwatchResource is called. Watching
// an already watched resource is a no-op.
func (h *Handler) WatchResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceParam(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	_, exists := h.watches[id]
	if !exists {
		h.watches[id] = nil
	}
	h.mu.Unlock()

	status := http.StatusOK
	if !exists {
		unsubscribe := h.svc.SubscribeToResource(id, func(u subscription.Update) { h.forward(u) })

		h.mu.Lock()
		if _, still := h.watches[id]; still {
			h.watches[id] = unsubscribe
			unsubscribe = nil
		}
		h.mu.Unlock()
		// Close or UnwatchResource removed the placeholder meanwhile.
		if unsubscribe != nil {
			unsubscribe()
		}

		status = http.StatusCreated
		logging.Info().Str("resource", sanitizeLogValue(id)).Msg("[api] Resource watch added")
	}

	respondSuccess(w, status, map[string]interface{}{
		"resource": id,
		"watching": true,
	})
}

// UnwatchResource removes an API-created watch.
func (h *Handler) UnwatchResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceParam(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	unsubscribe, exists := h.watches[id]
	delete(h.watches, id)
	h.mu.Unlock()

	if !exists {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Resource is not watched.", nil)
		return
	}
	if unsubscribe != nil {
		unsubscribe()
	}

	logging.Info().Str("resource", sanitizeLogValue(id)).Msg("[api] Resource watch removed")
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"resource": id,
		"watching": false,
	})
}

// ListWatches returns the ids watched through the API.
func (h *Handler) ListWatches(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.watched())
}
