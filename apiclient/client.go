// Package apiclient is the single shared HTTP transport for the AgriMandi
// backend. Every feature store and the session store go through one
// Client; it attaches the current bearer token to each request and turns
// HTTP 401 into a single session-invalidated signal.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TokenSource returns the current bearer token, or "" when anonymous.
// It is read per request so a token refreshed mid-session is picked up
// without rebuilding the client.
type TokenSource func() string

// UnauthorizedHandler is invoked at most once per session invalidation
// when any request receives HTTP 401.
type UnauthorizedHandler func()

// Client is the shared HTTP transport. Construct once with New and share
// between stores.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	limiter    *rate.Limiter
	log        zerolog.Logger

	mu             sync.RWMutex
	tokenSource    TokenSource
	onUnauthorized UnauthorizedHandler

	// invalidating de-duplicates the 401 signal across concurrent
	// in-flight requests; reset by ResetInvalidation once the forced
	// logout has completed.
	invalidating atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client (primarily for testing).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithDefaultHeader adds a header sent on every request.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithRateLimit throttles outgoing requests to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client for the given base URL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    http.Header{},
		log:        zerolog.Nop(),
	}
	c.headers.Set("Accept", "application/json")
	for _, opt := range options {
		opt(c)
	}
	return c
}

// SetTokenSource installs the bearer-token source. Called during wiring,
// after the session store exists.
func (c *Client) SetTokenSource(source TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = source
}

// SetUnauthorizedHandler installs the session-invalidated handler.
func (c *Client) SetUnauthorizedHandler(handler UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = handler
}

// ResetInvalidation re-arms the 401 signal. The session store calls this
// when a new session is established, so the new session can be
// invalidated in turn while stale 401s from the old one stay latched.
func (c *Client) ResetInvalidation() {
	c.invalidating.Store(false)
}

// Response is a successful (non-error-status) backend response.
type Response struct {
	StatusCode int
	Body       []byte
}

// RequestOption adjusts a single request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers  http.Header
	query    url.Values
	noSignal bool
}

// WithHeader sets a header on this request only.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.headers.Set(key, value)
	}
}

// WithQuery adds a query parameter to this request.
func WithQuery(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.query.Add(key, value)
	}
}

// WithoutUnauthorizedSignal exempts this request from the global 401
// signal. Used by the auth endpoints themselves: a 401 from a login or
// OTP attempt means bad credentials, not an invalidated session.
func WithoutUnauthorizedSignal() RequestOption {
	return func(rc *requestConfig) {
		rc.noSignal = true
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, options ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, options...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, options ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, options...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, options ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body, options...)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any, options ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body, options...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, options ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, options...)
}

func (c *Client) do(ctx context.Context, method, path string, body any, options ...RequestOption) (*Response, error) {
	rc := &requestConfig{headers: http.Header{}, query: url.Values{}}
	for _, opt := range options {
		opt(rc)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "[Client.do] rate limiter")
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.do] marshal body")
		}
		reader = bytes.NewReader(payload)
	}

	requestURL := c.baseURL + path
	if len(rc.query) > 0 {
		requestURL += "?" + rc.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.do] build request")
	}

	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	for key, values := range rc.headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	// The token source is read here, not at construction time, so the
	// current token is always the one attached.
	c.mu.RLock()
	tokenSource := c.tokenSource
	c.mu.RUnlock()
	if tokenSource != nil {
		if bearer := tokenSource(); bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrUnreachable, "[Client.do] %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreachable, "[Client.do] read body: %v", err)
	}

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("response")

	if resp.StatusCode == http.StatusUnauthorized {
		if !rc.noSignal {
			c.signalUnauthorized()
		}
		return nil, newStatusError(resp.StatusCode, responseBody)
	}
	if resp.StatusCode >= 400 {
		return nil, newStatusError(resp.StatusCode, responseBody)
	}

	return &Response{StatusCode: resp.StatusCode, Body: responseBody}, nil
}

// signalUnauthorized fires the session-invalidated handler exactly once
// per invalidation, no matter how many in-flight requests hit 401.
func (c *Client) signalUnauthorized() {
	if !c.invalidating.CompareAndSwap(false, true) {
		return
	}
	c.mu.RLock()
	handler := c.onUnauthorized
	c.mu.RUnlock()
	if handler != nil {
		handler()
	}
}
