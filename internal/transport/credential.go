// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package transport

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/livesync/internal/syncerr"
)

var (
	// ErrCredentialMissing is returned when a credential is required but empty.
	ErrCredentialMissing = errors.New("credential required")
	// ErrCredentialExpired is returned for a JWT whose exp claim has passed.
	ErrCredentialExpired = errors.New("credential expired")
)

// CheckCredential decides locally whether opening a channel can succeed.
//
// The signature is not verified here; the remote does that and answers with
// close code 4401. Opaque (non-JWT) tokens are passed through unchanged.
func CheckCredential(resource, token string, required bool, now time.Time) error {
	if token == "" {
		if required {
			return syncerr.New(syncerr.Unauthorized, "open", resource, ErrCredentialMissing)
		}
		return nil
	}

	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !now.Before(exp.Time) {
		return syncerr.New(syncerr.Unauthorized, "open", resource, ErrCredentialExpired)
	}
	return nil
}
