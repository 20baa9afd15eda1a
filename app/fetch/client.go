package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const fetchChunkSize = 8192

const syndicationAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// Result carries the response body and status metadata of a successful
// fetch attempt.
type Result struct {
	Body       []byte
	StatusCode int
}

// Client retrieves remote feed payloads under strict resource limits.
// Every attempt is bounded by a timeout and a byte cap; failures are
// retried with exponential backoff before the last error is surfaced.
type Client struct {
	httpClient *http.Client
	userAgent  string
	retries    int
}

func NewClient(userAgent string, retries int) *Client {
	if retries < 1 {
		retries = 1
	}
	return &Client{
		httpClient: &http.Client{},
		userAgent:  userAgent,
		retries:    retries,
	}
}

// Fetch retrieves url, retrying transient failures. timeout applies per
// attempt, maxBytes to the cumulative body size.
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration, maxBytes int) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		result, err := c.fetchOnce(ctx, url, timeout, maxBytes)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < c.retries {
			slog.Debug("Fetch attempt failed, backing off", "url", url, "attempt", attempt, "error", err)
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch after %d attempt(s): %w", c.retries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string, timeout time.Duration, maxBytes int) (*Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", syndicationAccept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := readCapped(resp.Body, maxBytes)
	if err != nil {
		return nil, err
	}

	return &Result{Body: body, StatusCode: resp.StatusCode}, nil
}

// readCapped streams the body in fixed-size chunks and aborts the moment
// the cumulative size exceeds maxBytes. The body is never buffered past
// the cap.
func readCapped(body io.Reader, maxBytes int) ([]byte, error) {
	var data []byte
	chunk := make([]byte, fetchChunkSize)

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			if len(data)+n > maxBytes {
				return nil, fmt.Errorf("response exceeded max_bytes=%d", maxBytes)
			}
			data = append(data, chunk[:n]...)
		}
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
	}
}

// sleepBackoff waits 2^(attempt-1) seconds or until the context is done.
func sleepBackoff(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
