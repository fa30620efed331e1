// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps JSON response bodies.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBodySize caps how much of an error body is read for its detail.
	maxErrorBodySize = 64 * 1024

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Credentials supplies the bearer token and receives expiry notifications.
// *auth.Session satisfies it.
type Credentials interface {
	Token() (string, error)
	Expire(reason string)
}

// Client performs authenticated requests against the chat backend.
type Client struct {
	baseURL      string
	creds        Credentials
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	userAgent    string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Requests are logged without headers or bodies.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = config.OrDiscard(logger) }
}

// WithTimeout sets the timeout for non-streaming requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces both underlying HTTP clients. The streaming client
// is a copy with its timeout removed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		c.httpClient = hc
		stream := *hc
		stream.Timeout = 0
		c.streamClient = &stream
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit paces outgoing requests. rps <= 0 disables pacing.
// This is pacing only; failed requests are never retried.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a client for baseURL using creds for every request.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		// No timeout for streaming - controlled via context
		streamClient: &http.Client{},
		userAgent:    "rigrun-chat",
		logger:       config.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST CONSTRUCTION
// =============================================================================

// newRequest builds an authenticated request. A missing credential yields
// *AuthError before anything touches the network.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, string, error) {
	token, err := c.creds.Token()
	if err != nil || strings.TrimSpace(token) == "" {
		msg := "no access token available"
		if err != nil {
			msg = err.Error()
		}
		return nil, "", &AuthError{Message: msg}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", &TransportError{Method: method, Path: path, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	return req, requestID, nil
}

// send executes req and logs the outcome.
// SECURITY: Only method, path, status, duration and request id are logged.
func (c *Client) send(hc *http.Client, req *http.Request, requestID string) (*http.Response, error) {
	start := time.Now()
	resp, err := hc.Do(req)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	req.Header.Del("Authorization")

	if err != nil {
		c.logger.Warn("api request failed",
			"method", req.Method, "path", req.URL.Path, "request_id", requestID,
			"duration", time.Since(start), "error", err)
		return nil, err
	}
	c.logger.Debug("api response",
		"method", req.Method, "path", req.URL.Path, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

// expire reports a 401 to the credential holder and builds the AuthError.
func (c *Client) expire(req *http.Request, status int, body []byte) error {
	detail := errorDetail(status, body)
	c.creds.Expire(fmt.Sprintf("%s %s returned %d", req.Method, req.URL.Path, status))
	return &AuthError{Status: status, Message: detail}
}

// readLimited reads up to limit bytes of r.
func readLimited(r io.Reader, limit int64) []byte {
	data, _ := io.ReadAll(io.LimitReader(r, limit))
	return data
}

// =============================================================================
// JSON REQUESTS
// =============================================================================

// DoJSON sends body (if non-nil) as JSON and decodes a 2xx response into out
// (if non-nil). Failures are one-shot: nothing is retried.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	req, requestID, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.send(c.httpClient, req, requestID)
	if err != nil {
		return &TransportError{Method: method, Path: req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return c.expire(req, resp.StatusCode, readLimited(resp.Body, maxErrorBodySize))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Method:  method,
			Path:    req.URL.Path,
			Status:  resp.StatusCode,
			Message: errorDetail(resp.StatusCode, readLimited(resp.Body, maxErrorBodySize)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	// SECURITY: Limit response size to prevent memory exhaustion
	data := readLimited(resp.Body, MaxResponseSize+1)
	if int64(len(data)) > MaxResponseSize {
		return &TransportError{Method: method, Path: req.URL.Path,
			Err: fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Method: method, Path: req.URL.Path, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}
