// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/livesync/internal/chat"
	"github.com/tomtom215/livesync/internal/polling"
	"github.com/tomtom215/livesync/internal/registry"
	"github.com/tomtom215/livesync/internal/subscription"
	"github.com/tomtom215/livesync/internal/syncerr"
)

// errorStatus maps a synchronization error to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrUnknownLocalID), errors.Is(err, registry.ErrUnknownResource), errors.Is(err, subscription.ErrUnknownRoom):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, chat.ErrAlreadyConfirmed):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, subscription.ErrClosed), errors.Is(err, polling.ErrStopped), errors.Is(err, registry.ErrClosed):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	}

	switch syncerr.KindOf(err) {
	case syncerr.Unauthorized:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case syncerr.Forbidden:
		return http.StatusForbidden, ErrCodeForbidden
	case syncerr.RoomNotFound:
		return http.StatusNotFound, ErrCodeRoomNotFound
	case syncerr.SendFailure:
		return http.StatusBadGateway, ErrCodeSendFailure
	case syncerr.FetchError:
		return http.StatusBadGateway, ErrCodeFetchError
	case syncerr.ConnectError, syncerr.TransientTransport:
		return http.StatusServiceUnavailable, ErrCodeConnectError
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// userMessage returns the text for the client. Classified errors use their
// user message; sentinel errors use their own text.
func userMessage(err error) string {
	if syncerr.KindOf(err) != syncerr.KindUnknown {
		return syncerr.UserMessage(err)
	}
	switch {
	case errors.Is(err, chat.ErrUnknownLocalID):
		return "Message not found."
	case errors.Is(err, chat.ErrAlreadyConfirmed):
		return "Message was already delivered."
	case errors.Is(err, registry.ErrUnknownResource):
		return "Resource is not tracked."
	case errors.Is(err, subscription.ErrUnknownRoom):
		return "Conversation is not open."
	case errors.Is(err, subscription.ErrClosed), errors.Is(err, polling.ErrStopped), errors.Is(err, registry.ErrClosed):
		return "Service is shutting down."
	}
	return syncerr.UserMessage(err)
}

// respondSyncError writes err with its mapped status, human-readable message
// and classification details.
func respondSyncError(w http.ResponseWriter, err error, details map[string]interface{}) {
	status, code := errorStatus(err)
	if details == nil {
		details = map[string]interface{}{}
	}
	kind := syncerr.KindOf(err)
	if kind != syncerr.KindUnknown {
		details["kind"] = kind.String()
		details["retryable"] = kind.Retryable()
	}
	var se *syncerr.Error
	if errors.As(err, &se) && se.Code != 0 {
		details["close_code"] = se.Code
	}
	if len(details) == 0 {
		details = nil
	}
	respondErrorDetails(w, status, code, userMessage(err), details, err)
}
