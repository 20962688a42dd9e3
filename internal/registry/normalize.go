// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package registry

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Normalize coerces a fetch result into an item sequence.
//
// A JSON array yields its elements. An object carrying a "data" array yields
// that array. Anything else (null, scalars, other objects, invalid JSON)
// yields an empty, non-nil slice.
func Normalize(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []json.RawMessage{}
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || items == nil {
			return []json.RawMessage{}
		}
		return items
	case '{':
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return []json.RawMessage{}
		}
		data := bytes.TrimSpace(envelope.Data)
		if len(data) == 0 || data[0] != '[' {
			return []json.RawMessage{}
		}
		return Normalize(data)
	default:
		return []json.RawMessage{}
	}
}
