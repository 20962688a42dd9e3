// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/registry"
)

// DefaultInterval is the polling interval used when none is given.
const DefaultInterval = 5 * time.Second

var (
	// ErrStopped is returned by Poll after the scheduler has been stopped.
	ErrStopped = errors.New("scheduler stopped")
	// ErrAlreadyPolled is returned when another poll owns the resource.
	ErrAlreadyPolled = errors.New("resource already has a poll attached")
)

// Registry is the subset of the resource registry the scheduler drives.
type Registry interface {
	Refresh(ctx context.Context, resourceID string) error
	Revalidate(ctx context.Context, resourceID string) error
	AttachPoll(resourceID string, s registry.Stopper) bool
	DetachPoll(resourceID string, s registry.Stopper)
}

// Scheduler runs one fetch loop per polled resource.
type Scheduler struct {
	reg      Registry
	interval time.Duration

	mu      sync.Mutex
	polls   map[string]*Poll
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Poll is the handle of one running fetch loop. It is attached to the
// registry entry, which stops it when the last listener leaves.
type Poll struct {
	s          *Scheduler
	resourceID string
	interval   time.Duration
	stopCh     chan struct{}
	once       sync.Once
}

// NewScheduler creates a scheduler. A non-positive interval selects DefaultInterval.
func NewScheduler(reg Registry, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		reg:      reg,
		interval: interval,
		polls:    make(map[string]*Poll),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Interval returns the default polling interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Poll starts fetching resourceID immediately and then every interval until
// the returned handle is stopped. A non-positive interval uses the
// scheduler default. Polling a resource that is already polled by this
// scheduler returns the existing handle.
func (s *Scheduler) Poll(resourceID string, interval time.Duration) (*Poll, error) {
	if interval <= 0 {
		interval = s.interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStopped
	}
	if p, ok := s.polls[resourceID]; ok {
		return p, nil
	}

	p := &Poll{
		s:          s,
		resourceID: resourceID,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
	if !s.reg.AttachPoll(resourceID, p) {
		return nil, fmt.Errorf("poll %s: %w", resourceID, ErrAlreadyPolled)
	}
	s.polls[resourceID] = p
	metrics.ActivePolls.Inc()

	logging.Debug().Str("resource", resourceID).Dur("interval", interval).Msg("[poller] Polling started")

	s.wg.Add(1)
	go s.loop(p)
	return p, nil
}

// Refresh performs an out-of-band fetch-and-notify. It does not reset any
// poll timer.
func (s *Scheduler) Refresh(ctx context.Context, resourceID string) error {
	return s.reg.Refresh(ctx, resourceID)
}

// Polling reports whether resourceID has an active loop.
func (s *Scheduler) Polling(resourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.polls[resourceID]
	return ok
}

// Serve implements suture.Service. It stops every poll when ctx is done.
func (s *Scheduler) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// Stop cancels in-flight fetches, stops every poll and waits for the loops
// to exit. Poll fails afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	polls := make([]*Poll, 0, len(s.polls))
	for _, p := range s.polls {
		polls = append(polls, p)
	}
	s.mu.Unlock()

	s.cancel()
	for _, p := range polls {
		p.Stop()
	}
	s.wg.Wait()
	logging.Info().Int("polls", len(polls)).Msg("[poller] Scheduler stopped")
}

// Resource returns the polled resource identifier.
func (p *Poll) Resource() string { return p.resourceID }

// Stop ends the loop. It does not wait for an in-flight fetch, so it is
// safe to call from a registry listener. Stop is idempotent.
func (p *Poll) Stop() {
	p.once.Do(func() {
		close(p.stopCh)

		p.s.mu.Lock()
		if cur, ok := p.s.polls[p.resourceID]; ok && cur == p {
			delete(p.s.polls, p.resourceID)
			metrics.ActivePolls.Dec()
		}
		p.s.mu.Unlock()

		p.s.reg.DetachPoll(p.resourceID, p)
		logging.Debug().Str("resource", p.resourceID).Msg("[poller] Polling stopped")
	})
}

func (s *Scheduler) loop(p *Poll) {
	defer s.wg.Done()

	s.tick(p)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			s.tick(p)
		}
	}
}

func (s *Scheduler) tick(p *Poll) {
	select {
	case <-p.stopCh:
		return
	default:
	}

	metrics.RecordPollTick(p.resourceID)
	if err := s.reg.Revalidate(s.ctx, p.resourceID); err != nil && s.ctx.Err() == nil {
		// The registry has already stored the error and notified listeners.
		logging.Debug().Err(err).Str("resource", p.resourceID).Msg("[poller] Poll fetch failed")
	}
}
