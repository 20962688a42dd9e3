// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/models"
	"github.com/tomtom215/livesync/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeRoomNotFound       = "ROOM_NOT_FOUND"
	ErrCodeSendFailure        = "SEND_FAILURE"
	ErrCodeFetchError         = "FETCH_ERROR"
	ErrCodeConnectError       = "CONNECT_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// sanitizeLogValue removes control characters from strings to prevent log
// injection through request-supplied values.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response. API responses describe live state and
// are never cached.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondError sends an error response. err, when set, is logged but never
// sent to the client; message must already be safe to show.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	respondErrorDetails(w, status, code, message, nil, err)
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// validateRequest validates a struct using go-playground/validator and
// returns a VALIDATION_ERROR APIError on failure.
func validateRequest(v interface{}) *models.APIError {
	if verr := validation.ValidateStruct(v); verr != nil {
		return verr.ToAPIError()
	}
	return nil
}

// decodeBody decodes a JSON request body of at most maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

const maxBodyBytes = 64 * 1024
