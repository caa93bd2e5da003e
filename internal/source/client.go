package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// ClientConfig configures the HTTP client used by http sources. Zero values
// take the defaults below; a negative MaxRetries disables retrying.
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = defaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return cfg
}

// Client sends source requests, retrying transient failures.
type Client struct {
	http *http.Client
	cfg  ClientConfig
}

// NewClient constructs a Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

// StatusError is returned for a final non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
}

// Do sends a request, retrying transport errors, 429 and 5xx responses with
// exponential backoff. The body is a byte slice so it can be re-sent. A final
// response outside 2xx is returned as *StatusError. The caller must close the
// body of a returned response.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers http.Header) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("url must not be empty")
	}

	attempts := c.cfg.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case retryable(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = &StatusError{Method: method, URL: url, Status: resp.StatusCode}
		case resp.StatusCode >= 300:
			_ = resp.Body.Close()
			return nil, &StatusError{Method: method, URL: url, Status: resp.StatusCode}
		default:
			return resp, nil
		}

		if attempt+1 >= attempts {
			break
		}
		if err := wait(ctx, backoff(c.cfg.InitialBackoff, attempt, c.cfg.MaxBackoff)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// retryable treats 429 and 5xx as transient.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500 && code <= 599
}

// backoff doubles initial per attempt, clamped to limit.
func backoff(initial time.Duration, attempt int, limit time.Duration) time.Duration {
	if d := initial << attempt; d > 0 && d < limit {
		return d
	}
	return limit
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
