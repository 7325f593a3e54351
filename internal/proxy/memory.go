// Package proxy forwards memory-backend requests so CLI and API clients
// can inspect stored memories through percept without talking to the
// backend directly.
package proxy

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client communicates with the external memory backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a memory backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Get performs a GET against the backend path and returns the response.
// Requests are retried with exponential backoff while the backend answers
// 429 or 5xx. The caller owns the response body.
func (c *Client) Get(ctx context.Context, path string, query string) (*http.Response, error) {
	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}

	var lastErr error
	for attempt := range maxRetries {
		resp, err := c.do(ctx, url)
		if err == nil {
			return resp, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("memory backend unavailable after %d retries: %w", maxRetries, lastErr)
}

// retryableError is returned on HTTP 429 and 5xx.
type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable backend status (HTTP %d)", e.status)
}

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, &retryableError{status: resp.StatusCode}
	}

	return resp, nil
}

// Healthy reports whether the backend health endpoint answers 200.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.Get(ctx, "/api/health", "")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
