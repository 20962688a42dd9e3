// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package connection

import "time"

// Default reconnection policy values.
const (
	DefaultMaxAttempts = 5
	DefaultDelay       = 3 * time.Second
)

// Policy is a bounded fixed-delay reconnection policy.
//
// Every attempt waits the same Delay; there is no exponential growth.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy returns 5 attempts at a fixed 3s delay.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Next returns the delay before the given attempt (1-based) and whether the
// attempt is allowed. Attempts beyond MaxAttempts are refused.
func (p Policy) Next(attempt int) (time.Duration, bool) {
	if attempt > p.maxAttempts() {
		return 0, false
	}
	return p.delay(), true
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) delay() time.Duration {
	if p.Delay <= 0 {
		return DefaultDelay
	}
	return p.Delay
}
