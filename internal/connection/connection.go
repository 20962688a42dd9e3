// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/syncerr"
	"github.com/tomtom215/livesync/internal/transport"
)

var (
	// ErrFailed is returned by Connect while the connection is Failed; call Retry.
	ErrFailed = errors.New("connection failed, retry required")
	// ErrHeartbeatTimeout is the cause recorded when the missed-heartbeat check fires.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnecting
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Channel is the subset of *transport.Channel a Connection drives.
type Channel interface {
	Events() <-chan transport.Event
	Send(transport.Outbound) error
	Close(reason string)
}

// OpenFunc opens one channel. It is called once per connection attempt.
type OpenFunc func(ctx context.Context) (Channel, error)

// TransportOpener returns an OpenFunc that dials ep with the current credential.
func TransportOpener(ep transport.Endpoint, credential func() string, opts transport.Options) OpenFunc {
	return func(ctx context.Context) (Channel, error) {
		token := ""
		if credential != nil {
			token = credential()
		}
		ch, err := transport.Open(ctx, ep, token, opts)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

// Options configures a Connection.
type Options struct {
	Resource  string
	Open      OpenFunc
	Policy    Policy
	Heartbeat HeartbeatConfig
	Now       func() time.Time

	// OnStateChange is called outside internal locks, possibly from
	// different goroutines.
	OnStateChange func(oldState, newState State)
	// OnFrame is called for every inbound frame, in arrival order, from a
	// single goroutine per open channel.
	OnFrame func(transport.Frame)
}

// Status is a point-in-time view of a Connection.
type Status struct {
	Resource        string
	State           State
	Attempt         int
	Connected       bool
	LastConnectedAt time.Time
	LastHeartbeatAt time.Time
	LastError       error
}

// Connection keeps one push channel alive for a single resource identifier.
//
// State machine:
//
//	Disconnected -> Connecting -> Open -(abnormal close)-> Reconnecting -> Connecting ...
//	any -(terminal close or open error, or attempts exhausted)-> Failed
//	Failed -(Retry)-> Connecting
//
// Each Connect, Retry and Close starts a new generation; goroutines and
// timers belonging to an older generation are inert.
//
// Close must not be called from OnFrame or OnStateChange.
type Connection struct {
	opts Options

	mu              sync.Mutex
	state           State
	attempt         int
	gen             uint64
	ch              Channel
	hb              *Heartbeat
	timer           *time.Timer
	cancel          context.CancelFunc
	lastConnectedAt time.Time
	lastHeartbeatAt time.Time
	lastErr         error

	wg sync.WaitGroup
}

// New creates a Connection in the Disconnected state.
func New(opts Options) *Connection {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Connection{opts: opts, state: StateDisconnected}
}

// Resource returns the resource identifier.
func (c *Connection) Resource() string { return c.opts.Resource }

// Connect starts connecting. It is idempotent: while Connecting, Open or
// Reconnecting it returns nil without opening a second channel.
// Connect returns ErrFailed (wrapping the last error) while Failed.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen, StateReconnecting:
		c.mu.Unlock()
		return nil
	case StateFailed:
		err := c.lastErr
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrFailed, err)
	case StateClosing:
		c.mu.Unlock()
		return fmt.Errorf("connect %s: connection is closing", c.opts.Resource)
	}
	old := c.state
	gen, dialCtx := c.beginLocked(ctx)
	c.state = StateConnecting
	c.mu.Unlock()

	c.notify(old, StateConnecting)
	c.spawnDial(dialCtx, gen)
	return nil
}

// Retry resets the attempt counter and re-enters Connecting. A pending
// scheduled reconnection is cancelled and replaced by an immediate attempt.
func (c *Connection) Retry(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen:
		c.mu.Unlock()
		return nil
	case StateClosing:
		c.mu.Unlock()
		return fmt.Errorf("retry %s: connection is closing", c.opts.Resource)
	}
	old := c.state
	gen, dialCtx := c.beginLocked(ctx)
	c.attempt = 0
	c.state = StateConnecting
	c.mu.Unlock()

	logging.Info().Str("resource", c.opts.Resource).Msg("[connection] Manual retry")
	c.notify(old, StateConnecting)
	c.spawnDial(dialCtx, gen)
	return nil
}

// Close closes the channel with a normal closure and cancels any pending
// reconnection. After Close returns no timer or goroutine of this
// Connection can open a channel.
func (c *Connection) Close() {
	c.mu.Lock()
	old := c.state
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	hb := c.stopHeartbeatLocked()
	ch := c.ch
	c.ch = nil
	if ch != nil {
		c.state = StateClosing
	} else {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if hb != nil {
		hb.Wait()
	}

	if ch != nil {
		c.notify(old, StateClosing)
		ch.Close("client closed")
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.notify(StateClosing, StateDisconnected)
	} else if old != StateDisconnected {
		c.notify(old, StateDisconnected)
	}

	c.wg.Wait()
	metrics.RecordChannelState(c.opts.Resource, int(StateDisconnected))
}

// Send writes a frame on the open channel. It fails with transport.ErrNotOpen
// unless the connection is Open.
func (c *Connection) Send(f transport.Outbound) error {
	c.mu.Lock()
	ch := c.ch
	state := c.state
	c.mu.Unlock()

	if state != StateOpen || ch == nil {
		return fmt.Errorf("send %s on %s (%s): %w", f.FrameType(), c.opts.Resource, state, transport.ErrNotOpen)
	}
	return ch.Send(f)
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the connection.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Resource:        c.opts.Resource,
		State:           c.state,
		Attempt:         c.attempt,
		Connected:       c.state == StateOpen,
		LastConnectedAt: c.lastConnectedAt,
		LastHeartbeatAt: c.lastHeartbeatAt,
		LastError:       c.lastErr,
	}
}

// Alive reports whether the connection is Open and has shown proof of life
// within the given window. Opening counts as proof of life.
func (c *Connection) Alive(within time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return false
	}
	last := c.lastHeartbeatAt
	if c.lastConnectedAt.After(last) {
		last = c.lastConnectedAt
	}
	return c.opts.Now().Sub(last) <= within
}

// beginLocked starts a new generation. Caller holds c.mu.
func (c *Connection) beginLocked(parent context.Context) (uint64, context.Context) {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	// The dial context outlives the caller's request; only Close and the
	// next generation cancel it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	ctx = logging.ContextWithResourceID(ctx, c.opts.Resource)
	c.cancel = cancel
	return c.gen, ctx
}

func (c *Connection) spawnDial(ctx context.Context, gen uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dial(ctx, gen)
	}()
}

func (c *Connection) dial(ctx context.Context, gen uint64) {
	ch, err := c.opts.Open(ctx)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if ch != nil {
			go drain(ch)
			ch.Close("superseded")
		}
		return
	}

	if err != nil {
		old := c.state
		c.failOrRescheduleLocked(ctx, gen, err)
		next := c.state
		c.mu.Unlock()
		c.notify(old, next)
		return
	}

	old := c.state
	now := c.opts.Now()
	c.ch = ch
	c.state = StateOpen
	c.attempt = 0
	c.lastConnectedAt = now
	c.lastErr = nil
	c.hb = StartHeartbeat(c.opts.Heartbeat, ch.Send, func() { c.heartbeatDead(ctx, gen) }, c.opts.Now)
	c.mu.Unlock()

	logging.Ctx(ctx).Info().Msg("[connection] Open")
	c.notify(old, StateOpen)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pump(ctx, gen, ch)
	}()
}

// pump drains one channel's events until Closed.
func (c *Connection) pump(ctx context.Context, gen uint64, ch Channel) {
	for ev := range ch.Events() {
		switch ev := ev.(type) {
		case transport.MessageReceived:
			if _, ok := ev.Frame.(transport.HeartbeatFrame); ok {
				c.recordHeartbeat(gen)
			}
			if c.opts.OnFrame != nil && c.current(gen) {
				c.opts.OnFrame(ev.Frame)
			}
		case transport.TransportError:
			logging.Ctx(ctx).Debug().Err(ev.Err).Msg("[connection] Transport error")
			c.mu.Lock()
			if gen == c.gen {
				c.lastErr = syncerr.New(syncerr.TransientTransport, "read", c.opts.Resource, ev.Err)
			}
			c.mu.Unlock()
		case transport.Closed:
			c.handleClosed(ctx, gen, ev)
		}
	}
}

func (c *Connection) handleClosed(ctx context.Context, gen uint64, ev transport.Closed) {
	c.mu.Lock()
	if gen != c.gen {
		// Closed by us (Close, Retry or heartbeat timeout); already handled.
		c.mu.Unlock()
		return
	}
	hb := c.stopHeartbeatLocked()
	c.ch = nil
	old := c.state

	switch transport.Classify(ev.Code) {
	case transport.CloseNormal:
		c.state = StateDisconnected
		logging.Ctx(ctx).Info().Int("close_code", ev.Code).Msg("[connection] Closed normally by remote")
	case transport.CloseTerminal:
		c.failLocked(syncerr.FromCloseCode(c.opts.Resource, ev.Code, ev.Reason))
	default:
		c.rescheduleLocked(ctx, gen, syncerr.FromCloseCode(c.opts.Resource, ev.Code, ev.Reason))
	}
	next := c.state
	c.mu.Unlock()

	if hb != nil {
		hb.Wait()
	}
	c.notify(old, next)
}

// heartbeatDead runs on the heartbeat goroutine when the optional timeout fires.
func (c *Connection) heartbeatDead(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	// Detach the channel: its Closed event belongs to a dead generation.
	c.gen++
	newGen := c.gen
	if c.hb != nil {
		c.hb.Stop()
		c.hb = nil
	}
	ch := c.ch
	c.ch = nil
	old := c.state
	c.rescheduleLocked(ctx, newGen, syncerr.New(syncerr.TransientTransport, "heartbeat", c.opts.Resource, ErrHeartbeatTimeout))
	next := c.state
	c.mu.Unlock()

	c.notify(old, next)
	if ch != nil {
		go ch.Close("heartbeat timeout")
	}
}

// failOrRescheduleLocked handles an open error. Caller holds c.mu.
func (c *Connection) failOrRescheduleLocked(ctx context.Context, gen uint64, err error) {
	if syncerr.IsTerminal(err) {
		c.failLocked(err)
		return
	}
	if syncerr.KindOf(err) == syncerr.KindUnknown {
		err = syncerr.New(syncerr.ConnectError, "open", c.opts.Resource, err)
	}
	c.rescheduleLocked(ctx, gen, err)
}

// rescheduleLocked enters Reconnecting and arms the fixed-delay timer, or
// enters Failed when the attempt budget is spent. Caller holds c.mu.
func (c *Connection) rescheduleLocked(ctx context.Context, gen uint64, cause error) {
	c.lastErr = cause
	c.attempt++

	delay, ok := c.opts.Policy.Next(c.attempt)
	if !ok {
		c.attempt--
		c.failLocked(syncerr.New(syncerr.TransientTransport, "reconnect", c.opts.Resource,
			fmt.Errorf("gave up after %d attempts: %w", c.attempt, cause)))
		return
	}

	c.state = StateReconnecting
	metrics.RecordReconnectAttempt(c.opts.Resource)
	logging.Ctx(ctx).Info().
		Int("attempt", c.attempt).
		Dur("delay", delay).
		Err(cause).
		Msg("[connection] Connection lost, reconnecting...")

	c.timer = time.AfterFunc(delay, func() { c.reconnect(ctx, gen) })
}

func (c *Connection) reconnect(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.state = StateConnecting
	c.wg.Add(1)
	c.mu.Unlock()

	c.notify(StateReconnecting, StateConnecting)
	defer c.wg.Done()
	c.dial(ctx, gen)
}

// failLocked enters the terminal Failed state. Caller holds c.mu.
func (c *Connection) failLocked(err error) {
	c.state = StateFailed
	c.lastErr = err
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	kind := syncerr.KindOf(err)
	metrics.RecordChannelFailure(kind.String())
	logging.Warn().
		Str("resource", c.opts.Resource).
		Str("kind", kind.String()).
		Str("user_message", syncerr.UserMessage(err)).
		Err(err).
		Msg("[connection] Failed")
}

func (c *Connection) stopHeartbeatLocked() *Heartbeat {
	hb := c.hb
	c.hb = nil
	if hb != nil {
		hb.Stop()
	}
	return hb
}

func (c *Connection) recordHeartbeat(gen uint64) {
	now := c.opts.Now()
	c.mu.Lock()
	if gen == c.gen {
		c.lastHeartbeatAt = now
		if c.hb != nil {
			c.hb.Seen(now)
		}
	}
	c.mu.Unlock()
	metrics.RecordHeartbeat(c.opts.Resource, now)
}

func (c *Connection) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Connection) notify(oldState, newState State) {
	if oldState == newState {
		return
	}
	metrics.RecordChannelState(c.opts.Resource, int(newState))
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(oldState, newState)
	}
}

func drain(ch Channel) {
	for range ch.Events() {
	}
}
