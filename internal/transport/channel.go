// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/syncerr"
)

// ErrNotOpen is returned by Send when the channel is not Open.
var ErrNotOpen = errors.New("channel is not open")

// State is the lifecycle state of a single Channel.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Event is one item of a channel's event stream. The set is closed:
// Opened, MessageReceived, Closed, TransportError.
type Event interface {
	isEvent()
}

// Opened is emitted once, first, when the channel becomes Open.
type Opened struct{}

// MessageReceived carries one decoded inbound frame.
type MessageReceived struct {
	Frame Frame
}

// Closed is emitted exactly once, last. Code 1006 means the connection
// dropped without a close frame.
type Closed struct {
	Code   int
	Reason string
}

// TransportError reports a read, decode or write failure. Decode failures do
// not close the channel; read failures are followed by Closed.
type TransportError struct {
	Err error
}

func (Opened) isEvent()          {}
func (MessageReceived) isEvent() {}
func (Closed) isEvent()          {}
func (TransportError) isEvent()  {}

// Dialer opens the underlying connection. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Endpoint identifies the logical room or notification channel.
type Endpoint struct {
	Resource string // resource identifier, e.g. "chatroom:42"
	URL      string // full ws:// or wss:// URL for this resource
}

// Options configures Open.
type Options struct {
	Dialer            Dialer
	RequireCredential bool
	HandshakeTimeout  time.Duration
	ReadTimeout       time.Duration // 0 disables the inbound idle deadline
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	EventBuffer       int
	Now               func() time.Time
}

func (o *Options) setDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.HandshakeTimeout,
		}
	}
}

// Channel is one bidirectional connection to a single endpoint.
//
// Events must be drained until it is closed; the read loop blocks when the
// buffer is full.
type Channel struct {
	resource string
	conn     *websocket.Conn
	opts     Options
	events   chan Event

	writeMu sync.Mutex

	mu          sync.Mutex
	state       State
	closeReason string
	closeTimer  *time.Timer

	done chan struct{}
}

// EndpointURL joins a channel base URL and path segments.
func EndpointURL(base string, segments ...string) string {
	u := strings.TrimRight(base, "/")
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u + "/"
}

// Open dials the endpoint and returns an Open channel.
//
// When the credential is required and absent (or a JWT that has expired)
// Open fails with an Unauthorized error without touching the network.
// Handshake rejections map to Unauthorized (401), Forbidden (403) and
// RoomNotFound (404); every other failure is a ConnectError.
func Open(ctx context.Context, ep Endpoint, credential string, opts Options) (*Channel, error) {
	opts.setDefaults()

	if err := CheckCredential(ep.Resource, credential, opts.RequireCredential, opts.Now()); err != nil {
		return nil, err
	}

	target, err := withToken(ep.URL, credential)
	if err != nil {
		return nil, syncerr.New(syncerr.ConnectError, "open", ep.Resource, err)
	}

	header := http.Header{}
	if credential != "" {
		header.Set("Authorization", "Bearer "+credential)
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()

	logging.Debug().Str("resource", ep.Resource).Str("url", redact(target)).Msg("[channel] Connecting")

	conn, resp, err := opts.Dialer.DialContext(dialCtx, target, header)
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("[channel] failed to close handshake response body")
		}
	}
	if err != nil {
		return nil, dialError(ep.Resource, resp, err)
	}

	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}

	c := &Channel{
		resource: ep.Resource,
		conn:     conn,
		opts:     opts,
		events:   make(chan Event, opts.EventBuffer),
		state:    StateConnecting,
		done:     make(chan struct{}),
	}

	// The auth frame is the ready signal: the channel is Open only once the
	// credential has been presented.
	if credential != "" {
		if err := c.write(NewAuth(credential)); err != nil {
			_ = conn.Close()
			return nil, syncerr.New(syncerr.ConnectError, "open", ep.Resource, err)
		}
	}

	c.mu.Lock()
	c.state = StateOpen
	c.mu.Unlock()
	c.events <- Opened{}

	logging.Info().Str("resource", ep.Resource).Msg("[channel] Connected")

	go c.readLoop()

	return c, nil
}

// Resource returns the endpoint's resource identifier.
func (c *Channel) Resource() string { return c.resource }

// Events returns the event stream. It is closed after Closed is delivered.
func (c *Channel) Events() <-chan Event { return c.events }

// Done is closed when the read loop has exited.
func (c *Channel) Done() <-chan struct{} { return c.done }

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send writes an outbound frame. It fails with ErrNotOpen unless the channel is Open.
func (c *Channel) Send(f Outbound) error {
	if c.State() != StateOpen {
		return fmt.Errorf("send %s on %s: %w", f.FrameType(), c.resource, ErrNotOpen)
	}
	if err := c.write(f); err != nil {
		return fmt.Errorf("send %s on %s: %w", f.FrameType(), c.resource, err)
	}
	return nil
}

func (c *Channel) write(f Outbound) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(c.opts.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	metrics.RecordFrameSent(f.FrameType())
	return nil
}

// Close performs a normal closure (1000) and waits for the read loop to
// deliver Closed. If the remote does not answer the close frame within the
// write timeout the connection is dropped locally. Close is idempotent.
func (c *Channel) Close(reason string) {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.state = StateClosing
	c.closeReason = reason
	c.closeTimer = time.AfterFunc(c.opts.WriteTimeout, func() {
		_ = c.conn.Close()
	})
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(CodeNormal, reason),
		c.opts.Now().Add(c.opts.WriteTimeout),
	)
	c.writeMu.Unlock()
	if err != nil {
		logging.Debug().Err(err).Str("resource", c.resource).Msg("[channel] Failed to send close message")
		_ = c.conn.Close()
	}

	<-c.done
}

func (c *Channel) readLoop() {
	closed := Closed{Code: CodeAbnormal}

	defer func() {
		c.mu.Lock()
		if c.closeTimer != nil {
			c.closeTimer.Stop()
		}
		// A locally initiated close always reports the normal code.
		if c.state == StateClosing {
			closed = Closed{Code: CodeNormal, Reason: c.closeReason}
		}
		c.state = StateClosed
		c.mu.Unlock()

		_ = c.conn.Close()
		metrics.RecordChannelClose(closed.Code)
		logging.Info().
			Str("resource", c.resource).
			Int("close_code", closed.Code).
			Str("reason", closed.Reason).
			Msg("[channel] Closed")

		c.events <- closed
		close(c.events)
		close(c.done)
	}()

	for {
		if c.opts.ReadTimeout > 0 {
			if err := c.conn.SetReadDeadline(c.opts.Now().Add(c.opts.ReadTimeout)); err != nil {
				c.events <- TransportError{Err: err}
				return
			}
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				closed = Closed{Code: ce.Code, Reason: ce.Text}
				return
			}
			if c.State() != StateClosing {
				c.events <- TransportError{Err: err}
			}
			return
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			logging.Warn().Err(err).Str("resource", c.resource).Msg("[channel] Failed to parse frame")
			c.events <- TransportError{Err: err}
			continue
		}
		metrics.RecordFrameReceived(frame.FrameType())
		c.events <- MessageReceived{Frame: frame}
	}
}

// withToken appends the credential as the token query parameter.
func withToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redact strips the query string for logging.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func dialError(resource string, resp *http.Response, err error) error {
	kind := syncerr.ConnectError
	code := 0
	if resp != nil {
		code = resp.StatusCode
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			kind = syncerr.Unauthorized
		case http.StatusForbidden:
			kind = syncerr.Forbidden
		case http.StatusNotFound:
			kind = syncerr.RoomNotFound
		}
	}
	e := syncerr.New(kind, "open", resource, err)
	e.Code = code
	return e
}
