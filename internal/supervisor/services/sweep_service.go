// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/livesync/internal/logging"
)

// Sweeper is satisfied by *registry.Registry.
type Sweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

// SweepService periodically evicts registry entries that have been idle
// for longer than maxIdle. Entries with listeners, polls or pending writes
// are never evicted.
type SweepService struct {
	sweeper  Sweeper
	interval time.Duration
	maxIdle  time.Duration
	name     string
}

// NewSweepService creates the service. interval defaults to maxIdle/2 and is
// never below one second.
func NewSweepService(sweeper Sweeper, interval, maxIdle time.Duration) *SweepService {
	if interval <= 0 {
		interval = maxIdle / 2
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &SweepService{
		sweeper:  sweeper,
		interval: interval,
		maxIdle:  maxIdle,
		name:     "registry-sweeper",
	}
}

// Serve implements suture.Service.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.sweeper.SweepIdle(s.maxIdle); n > 0 {
				logging.Debug().Int("evicted", n).Dur("max_idle", s.maxIdle).Msg("[registry] Idle entries swept")
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *SweepService) String() string {
	return s.name
}
