// Package httpclient is a small HTTP client for batch sources: optional
// Bearer auth, a base URL, and bounded retries on 429 and 5xx responses.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	maxRetries   = 3
	errBodyLimit = 512
)

// Client fetches resources relative to a base URL.
type Client struct {
	base    string
	token   string
	maxBody int64
	backoff time.Duration
	hc      *http.Client
}

// APIError is a non-2xx response that was not retried or ran out of
// retries.
type APIError struct {
	StatusCode int
	Body       string // truncated
	retryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each attempt, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithBackoff sets the first retry delay; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithMaxBody caps how much of a response Get reads into memory.
func WithMaxBody(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// New creates a Client. An empty token sends no Authorization header.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		base:    baseURL,
		token:   token,
		maxBody: 256 << 20,
		backoff: time.Second,
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open performs a GET and returns the body of the first 2xx response for
// the caller to stream and close. Failed attempts are retried before any
// body is handed over; a non-retryable status returns *APIError at once.
func (c *Client) Open(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var last *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.delay(attempt, last)); err != nil {
				return nil, err
			}
		}

		body, apiErr, err := c.attempt(ctx, target)
		if err != nil {
			return nil, err
		}
		if apiErr == nil {
			return body, nil
		}
		if !apiErr.retryable() {
			return nil, apiErr
		}
		last = apiErr
	}
	return nil, last
}

// Get is Open followed by reading the whole body, capped by WithMaxBody.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.Open(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(io.LimitReader(body, c.maxBody))
}

// GetJSON decodes the response body into dest.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dest any) error {
	body, err := c.Open(ctx, path, query)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(io.LimitReader(body, c.maxBody)).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// attempt sends one request. Exactly one of body, apiErr and err is set.
func (c *Client) attempt(ctx context.Context, target string) (io.ReadCloser, *APIError, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil, nil
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(snippet)}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			apiErr.retryAfter = time.Duration(secs) * time.Second
		}
	}
	return nil, apiErr, nil
}

// delay is the wait before retry number attempt (1-based).
func (c *Client) delay(attempt int, last *APIError) time.Duration {
	if last != nil && last.retryAfter > 0 {
		return last.retryAfter
	}
	return c.backoff << (attempt - 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
