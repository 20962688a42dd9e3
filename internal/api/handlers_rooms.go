// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/livesync/internal/chat"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/models"
)

// RoomView is the API representation of a room session.
type RoomView struct {
	ID       models.ID            `json:"id"`
	Resource string               `json:"resource"`
	Push     bool                 `json:"push"`
	Channel  models.ChannelStatus `json:"channel"`
	Messages []chat.Item          `json:"messages"`
}

func roomParam(w http.ResponseWriter, r *http.Request) (models.ID, bool) {
	req := RoomRequest{RoomID: chi.URLParam(r, "room")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return "", false
	}
	return models.ID(req.RoomID), true
}

func pendingView(p chat.PendingMessage) PendingMessageView {
	return PendingMessageView{
		LocalID:     p.LocalID,
		Content:     p.Content,
		ConfirmedID: string(p.ConfirmedID),
		Failed:      p.Failed,
	}
}

// ListRooms returns the ids of the open room sessions.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.svc.Rooms()
	if rooms == nil {
		rooms = []models.ID{}
	}
	respondSuccess(w, http.StatusOK, rooms)
}

// GetRoom opens the room session if needed and returns its visible
// message sequence and channel status.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}

	room, err := h.svc.Room(roomID)
	if err != nil {
		respondSyncError(w, err, nil)
		return
	}

	items := room.Reconciler().Items()
	if items == nil {
		items = []chat.Item{}
	}
	respondSuccess(w, http.StatusOK, RoomView{
		ID:       room.ID(),
		Resource: room.Resource(),
		Push:     room.Push(),
		Channel:  channelStatus(room.Status()),
		Messages: items,
	})
}

// SendMessage sends a chat message optimistically. The response carries
// the local id; a push send is 202 until the echo arrives, a confirmed
// write is 201 with the server id.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}

	var body SendMessageBody
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Request body must be JSON: {\"content\": \"...\"}", nil)
		return
	}
	req := SendMessageRequest{RoomID: string(roomID), Content: body.Content}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	p, err := h.svc.Send(r.Context(), roomID, req.Content)
	h.respondSend(w, p, err)
}

// RetryMessage re-sends a failed message under its original local id.
func (h *Handler) RetryMessage(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}
	req := RetryMessageRequest{RoomID: string(roomID), LocalID: chi.URLParam(r, "localID")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	p, err := h.svc.RetrySend(r.Context(), roomID, req.LocalID)
	h.respondSend(w, p, err)
}

func (h *Handler) respondSend(w http.ResponseWriter, p chat.PendingMessage, err error) {
	if err != nil {
		var details map[string]interface{}
		if p.LocalID != "" {
			details = map[string]interface{}{"local_id": p.LocalID}
		}
		respondSyncError(w, err, details)
		return
	}

	status := http.StatusAccepted
	if p.ConfirmedID != "" {
		status = http.StatusCreated
	}
	respondSuccess(w, status, pendingView(p))
}

// ReconnectRoom retries a room's push channel after it reached Failed.
func (h *Handler) ReconnectRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}

	room, err := h.svc.Room(roomID)
	if err != nil {
		respondSyncError(w, err, nil)
		return
	}
	if !room.Push() {
		respondError(w, http.StatusConflict, ErrCodeConflict, "This conversation is updated by polling and has no live connection.", nil)
		return
	}

	if err := h.svc.Reconnect(r.Context(), roomID); err != nil {
		respondSyncError(w, err, nil)
		return
	}
	respondSuccess(w, http.StatusAccepted, channelStatus(room.Status()))
}

// DisconnectRoom closes a room session and forgets it.
func (h *Handler) DisconnectRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Disconnect(roomID); err != nil {
		respondSyncError(w, err, nil)
		return
	}

	logging.Info().Str("room", sanitizeLogValue(string(roomID))).Msg("[api] Room session closed")
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"room":      roomID,
		"connected": false,
	})
}
