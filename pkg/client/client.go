package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout          = 5 * time.Second
	defaultMaxRetries       = 3
	defaultBaseDelay        = time.Second
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second
)

// Response is the envelope the scheduler answers with. Code 0 means
// success; code 1 carries the failure description in Msg.
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client talks to the scheduler HTTP surface over a bearer-authenticated
// channel. Transient failures (network errors, 5xx) are retried with
// exponential backoff; authentication failures surface immediately as
// *AuthError and exhausted retries as *RetryExhaustedError.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	breaker    *CircuitBreaker
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many attempts a request gets before giving up.
// Values below one fall back to a single attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = n
	}
}

// WithBaseDelay scales the exponential backoff. The wait before attempt
// n is baseDelay * 2^n.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// New creates a Client for the scheduler at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		breaker:    NewCircuitBreaker(defaultBreakerThreshold, defaultBreakerTimeout),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) request(ctx context.Context, method, path string, payload any) (*Response, error) {
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = encoded
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: baseDelay * 2^attempt.
			delay := c.baseDelay * time.Duration(1<<attempt)
			c.logger.Warn("retrying request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.attempt(ctx, method, url, body)
		if err == nil {
			c.breaker.RecordSuccess()
			return resp, nil
		}

		var authErr *AuthError
		var apiErr *APIError
		if errors.As(err, &authErr) || errors.As(err, &apiErr) {
			// Not transient; retrying cannot help.
			c.breaker.RecordFailure()
			return nil, err
		}

		lastErr = err
		c.breaker.RecordFailure()
	}

	c.logger.Error("request failed after retries",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("attempts", c.maxRetries),
		slog.String("error", lastErr.Error()))

	return nil, &RetryExhaustedError{Attempts: c.maxRetries, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Msg: "invalid api key"}
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("server error: status %d", httpResp.StatusCode)
	case httpResp.StatusCode >= http.StatusBadRequest:
		return nil, &APIError{StatusCode: httpResp.StatusCode, Msg: httpResp.Status}
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &resp, nil
}

// Backends lists every backend in the registry.
func (c *Client) Backends(ctx context.Context) (*Response, error) {
	return c.request(ctx, http.MethodGet, "v1/backends", nil)
}

// AppBackends lists every backend of one app id, unfiltered.
func (c *Client) AppBackends(ctx context.Context, appID string) (*Response, error) {
	return c.request(ctx, http.MethodGet, fmt.Sprintf("v1/%s/backends/all", appID), nil)
}

// SelectBackends asks the scheduler which backends should handle the
// next request. A non-empty policyType runs a one-shot override.
func (c *Client) SelectBackends(ctx context.Context, appID, policyType string) (*Response, error) {
	path := fmt.Sprintf("v1/%s/backends", appID)
	if policyType != "" {
		path += "?policy=" + policyType
	}
	return c.request(ctx, http.MethodGet, path, nil)
}

// RegisterBackend registers a worker instance under an app id.
func (c *Client) RegisterBackend(ctx context.Context, appID, instanceID string, weight int) (*Response, error) {
	payload := map[string]any{"instance_id": instanceID}
	if weight > 0 {
		payload["weight"] = weight
	}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("v1/%s/backends", appID), payload)
}

// RemoveBackend deletes a backend from the registry.
func (c *Client) RemoveBackend(ctx context.Context, appID, backendID string) (*Response, error) {
	return c.request(ctx, http.MethodDelete, fmt.Sprintf("v1/%s/backends/%s", appID, backendID), nil)
}

// SetBackendState sets a backend's explicit active/down state.
func (c *Client) SetBackendState(ctx context.Context, appID, backendID, state string) (*Response, error) {
	return c.request(ctx, http.MethodPatch,
		fmt.Sprintf("v1/%s/backends/%s", appID, backendID),
		map[string]string{"state": state})
}

// SetBackendWeight sets a backend's selection weight.
func (c *Client) SetBackendWeight(ctx context.Context, appID, backendID string, weight int) (*Response, error) {
	return c.request(ctx, http.MethodPatch,
		fmt.Sprintf("v1/%s/backends/%s/weight", appID, backendID),
		map[string]int{"weight": weight})
}

// ReassignBackend moves a backend to another app id.
func (c *Client) ReassignBackend(ctx context.Context, appID, backendID, newAppID string) (*Response, error) {
	return c.request(ctx, http.MethodPatch,
		fmt.Sprintf("v1/%s/backends/%s/app", appID, backendID),
		map[string]string{"app_id": newAppID})
}

// Policies lists the supported selection policies.
func (c *Client) Policies(ctx context.Context) (*Response, error) {
	return c.request(ctx, http.MethodGet, "v1/policies", nil)
}

// Policy returns the effective policy configuration of an app id.
func (c *Client) Policy(ctx context.Context, appID string) (*Response, error) {
	return c.request(ctx, http.MethodGet, fmt.Sprintf("v1/%s/policy", appID), nil)
}

// UpdatePolicy sets the policy type and limit of an app id.
func (c *Client) UpdatePolicy(ctx context.Context, appID, policyType string, limit int) (*Response, error) {
	return c.request(ctx, http.MethodPatch,
		fmt.Sprintf("v1/%s/policy", appID),
		map[string]any{"type": policyType, "limit": limit})
}
