package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/config"
)

// StatusError is returned for a final non-200 response
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}

// Client implements ports.HTTPClient with retries on transport errors,
// 5xx and 429 responses
type Client struct {
	client  *http.Client
	config  config.HTTPConfig
	retry   config.RetryConfig
	logger  ports.Logger
	metrics ports.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. HTTP.Timeout bounds connecting and waiting for
// response headers; reading the body is bounded only by ctx, since dataset
// files can take longer than any fixed timeout.
func NewClient(cfg config.HTTPConfig, retry config.RetryConfig, logger ports.Logger, metrics ports.Metrics) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &Client{
		client:  &http.Client{Transport: transport},
		config:  cfg,
		retry:   retry,
		logger:  logger,
		metrics: metrics,
		sleep:   sleepCtx,
	}
}

// Download implements ports.HTTPClient
func (c *Client) Download(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, map[string]string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Warn("Retrying request",
				"url", url,
				"attempt", attempt+1,
				"backoff_ms", backoff.Milliseconds(),
				"error", lastErr)
			c.metrics.IncrementCounter("http.retries", nil)

			if err := c.sleep(ctx, backoff); err != nil {
				return nil, nil, err
			}
		}

		body, respHeaders, retryable, err := c.do(ctx, url, headers)
		if err == nil {
			c.metrics.IncrementCounter("http.requests", map[string]string{"status": "ok"})
			return body, respHeaders, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if !retryable {
			break
		}
	}

	c.metrics.IncrementCounter("http.requests", map[string]string{"status": "error"})

	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) {
		return nil, nil, lastErr
	}
	return nil, nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// do performs one attempt and reports whether a failure is worth retrying
func (c *Client) do(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, map[string]string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, true, err
	}

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		resp.Body.Close()

		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, nil, retryable, &StatusError{URL: url, Code: resp.StatusCode}
	}

	responseHeaders := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		responseHeaders[key] = resp.Header.Get(key)
	}

	return resp.Body, responseHeaders, false, nil
}

// backoff returns InitialBackoff * Multiplier^(attempt-1), capped at MaxBackoff
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.retry.InitialBackoff) * math.Pow(c.retry.BackoffMultiplier, float64(attempt-1))
	if max := float64(c.retry.MaxBackoff); c.retry.MaxBackoff > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
