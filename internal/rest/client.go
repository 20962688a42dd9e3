// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/livesync/internal/config"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/models"
	"github.com/tomtom215/livesync/internal/registry"
)

// maxErrorBodySize limits how much of an error response body is kept.
const maxErrorBodySize = 64 * 1024

// roomMessagesPath is the collection of messages of one chat room.
const roomMessagesPath = "/chat/rooms/%s/messages"

// StatusError is a non-2xx response from the storefront API.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsNotFound reports whether the resource does not exist. Consumers render
// it as an empty list rather than a failure.
func (e *StatusError) IsNotFound() bool { return e.Code == http.StatusNotFound }

// IsClientError reports a 4xx response other than 429.
func (e *StatusError) IsClientError() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the storefront API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.IsNotFound()
}

// Client talks to the storefront REST API. It is safe for concurrent use.
//
// Requests are throttled by a token bucket and HTTP 429 responses are
// retried with exponential backoff (1s, 2s, 4s...) or the server's
// Retry-After value.
type Client struct {
	baseURL        string
	token          string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a client from the REST configuration.
func NewClient(cfg config.RESTConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: retryBase,
	}
}

// Fetch GETs path and returns the raw response body.
func (c *Client) Fetch(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// FetchFunc adapts Fetch of one path to a registry fetch.
func (c *Client) FetchFunc(path string) registry.FetchFunc {
	return func(ctx context.Context) (json.RawMessage, error) {
		return c.Fetch(ctx, path)
	}
}

type postMessageRequest struct {
	Content  string `json:"content"`
	ClientID string `json:"client_id,omitempty"`
}

// PostMessage writes a chat message and returns the server-confirmed copy.
// clientID is the local id of the optimistic send; servers that support it
// echo it back.
func (c *Client) PostMessage(ctx context.Context, roomID models.ID, content, clientID string) (models.Message, error) {
	payload, err := json.Marshal(postMessageRequest{Content: content, ClientID: clientID})
	if err != nil {
		return models.Message{}, fmt.Errorf("encode message: %w", err)
	}

	path := fmt.Sprintf(roomMessagesPath, url.PathEscape(string(roomID)))
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	if err := json.Unmarshal(unwrapData(body), &msg); err != nil {
		return models.Message{}, fmt.Errorf("decode %s response: %w", path, err)
	}
	if msg.RoomID == "" {
		msg.RoomID = roomID
	}
	return msg, nil
}

// RoomHistory lists the messages of a room in server order.
func (c *Client) RoomHistory(ctx context.Context, roomID models.ID) ([]models.Message, error) {
	path := fmt.Sprintf(roomMessagesPath, url.PathEscape(string(roomID)))
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	raws := registry.Normalize(body)
	msgs := make([]models.Message, 0, len(raws))
	for _, raw := range raws {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("[REST] Skipping undecodable message")
			continue
		}
		if m.RoomID == "" {
			m.RoomID = roomID
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// do performs one request with rate limiting and 429 retries, returning the
// body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	reqURL := c.baseURL + path
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}

		var body io.Reader = http.NoBody
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: HTTP request failed: %w", method, path, err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return readResponse(method, path, resp)
		}

		retryAfter := resp.Header.Get("Retry-After")
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = &StatusError{
				Method: method,
				Path:   path,
				Code:   http.StatusTooManyRequests,
				Body:   fmt.Sprintf("rate limit exceeded after %d retries", c.maxRetries),
			}
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}
		logging.Debug().Str("path", path).Int("attempt", attempt+1).Dur("delay", delay).
			Msg("[REST] Rate limited, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func readResponse(method, path string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(readBodyForError(resp.Body))),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	return data, nil
}

// unwrapData returns the value of a top-level "data" member, or body as is.
func unwrapData(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		return env.Data
	}
	return body
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
