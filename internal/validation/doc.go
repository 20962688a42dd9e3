// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package validation provides struct validation using go-playground/validator v10.
//
// The package wraps a thread-safe singleton validator with a few custom tags
// and translates failures into the API's VALIDATION_ERROR shape.
//
// # Custom Tags
//
//   - resourceid: registry keys, e.g. "orders" or "chatroom:room-1"
//     (letters, digits and _ . : -, at most 128 characters)
//   - localid: optimistic message ids of the form temp_<unix ms>
//   - notblank: non-empty after trimming whitespace
//
// # Usage
//
//	type SendMessageRequest struct {
//	    RoomID  string `validate:"required,resourceid"`
//	    Content string `validate:"notblank,max=4000"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// # Thread Safety
//
// GetValidator initializes the validator once; the returned instance caches
// struct metadata and is safe for concurrent use.
package validation
