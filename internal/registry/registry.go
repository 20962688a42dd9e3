// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/snapshot"
	"github.com/tomtom215/livesync/internal/syncerr"
)

// DefaultStaleThreshold is the maximum age of cached data served to a new subscriber.
const DefaultStaleThreshold = 5 * time.Second

var (
	// ErrUnknownResource is returned for a resource identifier with no entry.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrNoFetch is returned by Refresh for an entry without a fetch function.
	ErrNoFetch = errors.New("resource has no fetch function")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("registry closed")
)

// FetchFunc pulls the current contents of a resource. The result may be a
// JSON array or an object with a data array; see Normalize.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Stopper stops a recurring poll.
type Stopper interface {
	Stop()
}

// Listener receives fan-out for one resource. Either callback may be nil.
// Items must be treated as read-only.
type Listener struct {
	OnData  func(items []json.RawMessage)
	OnError func(err error)
}

// Handle identifies one subscription.
type Handle struct {
	resource string
	id       uint64
}

// Resource returns the subscribed resource identifier.
func (h Handle) Resource() string { return h.resource }

// Snapshot is a point-in-time copy of an entry.
//
// Loaded distinguishes "no data yet" from "fetched, empty". Err may be set
// while Items still holds the last good data.
type Snapshot struct {
	ResourceID  string
	Loaded      bool
	Items       []json.RawMessage
	LastFetchAt time.Time
	Err         error
	Listeners   int
	Polling     bool
	Pending     int
}

// Options configures a Registry.
type Options struct {
	StaleThreshold time.Duration
	Store          snapshot.Store // optional warm cache
	Now            func() time.Time
}

type listener struct {
	id     uint64
	l      Listener
	active atomic.Bool
}

type delivery struct {
	isError bool
	target  *listener // nil delivers to every listener
	// upTo is the newest listener id registered when a fan-out was queued.
	// Later listeners got their own cache-first delivery and are skipped.
	upTo uint64
}

type entry struct {
	id          string
	items       []json.RawMessage
	loaded      bool
	lastFetchAt time.Time
	err         error
	listeners   []*listener
	fetch       FetchFunc
	poll        Stopper
	pending     int
	lastActive  time.Time

	// queue serializes fan-out for this entry; guarded by qmu.
	qmu      sync.Mutex
	queue    []delivery
	draining bool
}

// Registry maps resource identifiers to cached data and listeners.
//
// Fan-outs for one resource never interleave; fan-outs for different
// resources run concurrently. Listeners run on a delivery goroutine, outside
// every registry lock, so they may call back into the Registry.
type Registry struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	nextID atomic.Uint64
	group  singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Registry. Close releases it.
func New(opts Options) *Registry {
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:    opts,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Subscribe registers a listener for resourceID.
//
// The first call for a resource creates its entry. A nil fetch never replaces
// an existing one. If the entry has never been fetched, or its last fetch is
// older than the stale threshold, a fetch is started (concurrent triggers are
// collapsed). Otherwise the cached data, and the last error if any, are
// delivered to the new listener without a network call.
func (r *Registry) Subscribe(resourceID string, fetch FetchFunc, l Listener) Handle {
	rec := &listener{l: l}
	rec.active.Store(true)

	r.mu.Lock()
	// Ids are issued under mu so fan-out stamps order against them.
	rec.id = r.nextID.Add(1)
	e := r.entryLocked(resourceID)
	if e.fetch == nil && fetch != nil {
		e.fetch = fetch
	}
	e.listeners = append(e.listeners, rec)
	e.lastActive = r.opts.Now()

	stale := e.lastFetchAt.IsZero() || r.opts.Now().Sub(e.lastFetchAt) > r.opts.StaleThreshold
	hasFetch := e.fetch != nil
	loaded, hasErr := e.loaded, e.err != nil
	closed := r.closed
	r.mu.Unlock()

	h := Handle{resource: resourceID, id: rec.id}

	switch {
	case closed:
	case stale && hasFetch:
		// Stale-but-present data is still shown while the fetch runs.
		if loaded {
			r.enqueue(e, delivery{target: rec})
		}
		r.triggerFetch(resourceID)
	default:
		if loaded {
			metrics.RecordCacheHit()
			r.enqueue(e, delivery{target: rec})
		}
		if hasErr {
			r.enqueue(e, delivery{isError: true, target: rec})
		}
	}

	return h
}

// Unsubscribe removes the listener. When the entry has no listeners left its
// poll is stopped; cached data is retained. In-flight fetches are not
// cancelled. Returns false if the handle was not registered.
func (r *Registry) Unsubscribe(h Handle) bool {
	r.mu.Lock()
	e, ok := r.entries[h.resource]
	if !ok {
		r.mu.Unlock()
		return false
	}

	found := false
	kept := e.listeners[:0]
	for _, rec := range e.listeners {
		if rec.id == h.id {
			rec.active.Store(false)
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	// Clear the tail so removed listeners can be collected.
	for i := len(kept); i < len(e.listeners); i++ {
		e.listeners[i] = nil
	}
	e.listeners = kept

	var poll Stopper
	if found && len(e.listeners) == 0 {
		poll = e.poll
		e.poll = nil
		e.lastActive = r.opts.Now()
	}
	r.mu.Unlock()

	if poll != nil {
		poll.Stop()
		logging.Debug().Str("resource", h.resource).Msg("[registry] Last listener left, poll stopped")
	}
	return found
}

// Notify fans out the current data (or error) to every listener registered
// at delivery time. It returns without waiting for listeners to run.
func (r *Registry) Notify(resourceID string, isError bool) {
	r.mu.RLock()
	e, ok := r.entries[resourceID]
	upTo := r.nextID.Load()
	r.mu.RUnlock()
	if !ok {
		return
	}
	r.enqueue(e, delivery{isError: isError, upTo: upTo})
}

// Refresh fetches resourceID now and notifies listeners. It does not touch
// any poll timer. On failure the error is stored and lastFetchAt is stamped
// anyway, the cached items are kept, and no retry is scheduled.
//
// Refresh must not be called synchronously from a listener of the same
// resource while the caller waits on that listener.
func (r *Registry) Refresh(ctx context.Context, resourceID string) error {
	return r.fetchAndNotify(ctx, resourceID)
}

// Revalidate is Refresh, except that it joins a fetch of the same resource
// that is already in flight instead of starting a second one.
func (r *Registry) Revalidate(ctx context.Context, resourceID string) error {
	_, err, _ := r.group.Do(resourceID, func() (interface{}, error) {
		return nil, r.fetchAndNotify(ctx, resourceID)
	})
	return err
}

// Publish stores items pushed from a live channel and notifies listeners.
// The entry is created if needed. Last write wins.
func (r *Registry) Publish(resourceID string, items []json.RawMessage) {
	if items == nil {
		items = []json.RawMessage{}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	e := r.entryLocked(resourceID)
	e.items = items
	e.loaded = true
	e.err = nil
	e.lastFetchAt = r.opts.Now()
	rec := snapshot.Record{Items: items, LastFetchAt: e.lastFetchAt}
	upTo := r.nextID.Load()
	r.mu.Unlock()

	r.persist(resourceID, rec)
	r.enqueue(e, delivery{upTo: upTo})
}

// SetFetch installs a fetch function on an entry, creating the entry if
// needed. Unlike Subscribe it replaces an existing function.
func (r *Registry) SetFetch(resourceID string, fetch FetchFunc) {
	r.mu.Lock()
	e := r.entryLocked(resourceID)
	e.fetch = fetch
	r.mu.Unlock()
}

// Snapshot returns a copy of the entry for resourceID.
func (r *Registry) Snapshot(resourceID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[resourceID]
	if !ok {
		return Snapshot{}, false
	}
	items := make([]json.RawMessage, len(e.items))
	copy(items, e.items)
	return Snapshot{
		ResourceID:  resourceID,
		Loaded:      e.loaded,
		Items:       items,
		LastFetchAt: e.lastFetchAt,
		Err:         e.err,
		Listeners:   len(e.listeners),
		Polling:     e.poll != nil,
		Pending:     e.pending,
	}, true
}

// Resources returns every resource identifier with an entry, sorted.
func (r *Registry) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AttachPoll records the active poll for resourceID. It returns false, and
// leaves the existing poll in place, if one is already attached.
func (r *Registry) AttachPoll(resourceID string, s Stopper) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(resourceID)
	if e.poll != nil {
		return false
	}
	e.poll = s
	return true
}

// DetachPoll clears the poll for resourceID if it is s.
func (r *Registry) DetachPoll(resourceID string, s Stopper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[resourceID]; ok && e.poll == s {
		e.poll = nil
	}
}

// HoldPending records an outstanding optimistic write on resourceID.
func (r *Registry) HoldPending(resourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryLocked(resourceID).pending++
}

// ReleasePending releases one outstanding optimistic write.
func (r *Registry) ReleasePending(resourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[resourceID]; ok && e.pending > 0 {
		e.pending--
	}
}

// Evict removes the entry when it has no listeners and no pending writes.
func (r *Registry) Evict(resourceID string) bool {
	r.mu.Lock()
	e, ok := r.entries[resourceID]
	if !ok || len(e.listeners) > 0 || e.pending > 0 {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, resourceID)
	poll := e.poll
	e.poll = nil
	metrics.RegistryEntries.Set(float64(len(r.entries)))
	r.mu.Unlock()

	if poll != nil {
		poll.Stop()
	}
	if r.opts.Store != nil {
		if err := r.opts.Store.Delete(r.ctx, resourceID); err != nil {
			logging.Warn().Err(err).Str("resource", resourceID).Msg("[registry] Failed to delete snapshot")
		}
	}
	logging.Debug().Str("resource", resourceID).Msg("[registry] Entry evicted")
	return true
}

// SweepIdle evicts entries that have had no listeners, no poll and no
// pending writes for longer than maxIdle. It returns the number evicted.
func (r *Registry) SweepIdle(maxIdle time.Duration) int {
	now := r.opts.Now()

	r.mu.RLock()
	var idle []string
	for id, e := range r.entries {
		if len(e.listeners) == 0 && e.pending == 0 && e.poll == nil && now.Sub(e.lastActive) > maxIdle {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	evicted := 0
	for _, id := range idle {
		if r.Evict(id) {
			evicted++
		}
	}
	return evicted
}

// Close stops every poll, cancels in-flight fetches and waits for pending
// deliveries. Subscribe and Publish become no-ops.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var polls []Stopper
	for _, e := range r.entries {
		if e.poll != nil {
			polls = append(polls, e.poll)
			e.poll = nil
		}
	}
	r.mu.Unlock()

	for _, p := range polls {
		p.Stop()
	}
	r.cancel()
	r.wg.Wait()
}

// entryLocked returns the entry for id, creating and warm-loading it.
// Caller holds r.mu for writing.
func (r *Registry) entryLocked(id string) *entry {
	if e, ok := r.entries[id]; ok {
		return e
	}
	e := &entry{id: id, lastActive: r.opts.Now()}
	if r.opts.Store != nil {
		rec, ok, err := r.opts.Store.Load(r.ctx, id)
		switch {
		case err != nil:
			logging.Warn().Err(err).Str("resource", id).Msg("[registry] Failed to load snapshot")
		case ok:
			e.items = rec.Items
			if e.items == nil {
				e.items = []json.RawMessage{}
			}
			e.loaded = true
			e.lastFetchAt = rec.LastFetchAt
		}
	}
	r.entries[id] = e
	metrics.RegistryEntries.Set(float64(len(r.entries)))
	return e
}

// triggerFetch starts a background fetch; concurrent triggers for the same
// resource share one call.
func (r *Registry) triggerFetch(resourceID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _, _ = r.group.Do(resourceID, func() (interface{}, error) {
			return nil, r.fetchAndNotify(r.ctx, resourceID)
		})
	}()
}

func (r *Registry) fetchAndNotify(ctx context.Context, resourceID string) error {
	r.mu.RLock()
	e, ok := r.entries[resourceID]
	closed := r.closed
	var fetch FetchFunc
	if ok {
		fetch = e.fetch
	}
	r.mu.RUnlock()

	switch {
	case closed:
		return ErrClosed
	case !ok:
		return fmt.Errorf("refresh %s: %w", resourceID, ErrUnknownResource)
	case fetch == nil:
		return fmt.Errorf("refresh %s: %w", resourceID, ErrNoFetch)
	}

	ctx = logging.ContextWithResourceID(ctx, resourceID)
	start := time.Now()
	raw, err := fetch(ctx)
	metrics.RecordFetch(resourceID, time.Since(start), err)

	var items []json.RawMessage
	if err == nil {
		items = Normalize(raw)
	}

	r.mu.Lock()
	e.lastFetchAt = r.opts.Now()
	if err != nil {
		e.err = err
	} else {
		e.items = items
		e.loaded = true
		e.err = nil
	}
	rec := snapshot.Record{Items: e.items, LastFetchAt: e.lastFetchAt}
	upTo := r.nextID.Load()
	r.mu.Unlock()

	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("[registry] Fetch failed")
		r.enqueue(e, delivery{isError: true, upTo: upTo})
		return syncerr.New(syncerr.FetchError, "fetch", resourceID, err)
	}

	r.persist(resourceID, rec)
	r.enqueue(e, delivery{upTo: upTo})
	return nil
}

func (r *Registry) persist(resourceID string, rec snapshot.Record) {
	if r.opts.Store == nil {
		return
	}
	if err := r.opts.Store.Save(r.ctx, resourceID, rec); err != nil {
		logging.Warn().Err(err).Str("resource", resourceID).Msg("[registry] Failed to save snapshot")
	}
}

// enqueue appends a delivery and starts the entry's drain goroutine if idle.
func (r *Registry) enqueue(e *entry, d delivery) {
	if r.ctx.Err() != nil {
		return
	}
	e.qmu.Lock()
	e.queue = append(e.queue, d)
	if e.draining {
		e.qmu.Unlock()
		return
	}
	e.draining = true
	e.qmu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain(e)
	}()
}

func (r *Registry) drain(e *entry) {
	for {
		e.qmu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.qmu.Unlock()
			return
		}
		d := e.queue[0]
		e.queue[0] = delivery{}
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		r.deliver(e, d)
	}
}

// deliver runs one fan-out. Data and listener membership are read at
// delivery time, so a listener removed after the triggering fetch started
// is not called. Listeners added after the fan-out was queued are skipped.
func (r *Registry) deliver(e *entry, d delivery) {
	r.mu.RLock()
	items := make([]json.RawMessage, len(e.items))
	copy(items, e.items)
	err := e.err
	loaded := e.loaded
	targets := make([]*listener, len(e.listeners))
	copy(targets, e.listeners)
	r.mu.RUnlock()

	if d.target != nil {
		targets = []*listener{d.target}
	}
	if !d.isError && !loaded {
		return
	}
	if d.isError && err == nil {
		return
	}

	for _, rec := range targets {
		if !rec.active.Load() || (d.target == nil && rec.id > d.upTo) {
			continue
		}
		if d.isError {
			if rec.l.OnError != nil {
				r.invoke(e.id, func() { rec.l.OnError(err) })
				metrics.RecordNotification(true)
			}
			continue
		}
		if rec.l.OnData != nil {
			r.invoke(e.id, func() { rec.l.OnData(items) })
			metrics.RecordNotification(false)
		}
	}
}

// invoke isolates one listener call; a panic is logged and counted.
func (r *Registry) invoke(resourceID string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordListenerPanic()
			logging.Error().
				Str("resource", resourceID).
				Interface("panic", rec).
				Msg("[registry] Listener panicked during fan-out")
		}
	}()
	fn()
}
