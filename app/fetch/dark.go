package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DarkResult carries the decoded markup of a watched page fetch.
type DarkResult struct {
	Markup        string
	BytesReceived int
	StatusCode    int
}

// DarkClient retrieves watched pages, routing onion-style hosts through a
// SOCKS5 proxy and everything else directly. Responses must declare a
// text/html-like content type and are decoded using the declared charset,
// falling back to lossy UTF-8.
type DarkClient struct {
	directClient  *http.Client
	proxiedClient *http.Client
	userAgent     string
	retries       int
}

func NewDarkClient(userAgent string, retries int, socksAddr string) (*DarkClient, error) {
	if retries < 1 {
		retries = 1
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer does not support context dialing")
	}

	return &DarkClient{
		directClient: &http.Client{},
		proxiedClient: &http.Client{
			Transport: &http.Transport{DialContext: contextDialer.DialContext},
		},
		userAgent: userAgent,
		retries:   retries,
	}, nil
}

// Fetch retrieves target with per-attempt timeout and byte cap, retrying
// with exponential backoff like the clear-web client.
func (c *DarkClient) Fetch(ctx context.Context, target string, timeout time.Duration, maxBytes int) (*DarkResult, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		result, err := c.fetchOnce(ctx, target, timeout, maxBytes)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < c.retries {
			slog.Debug("Dark fetch attempt failed, backing off", "url", target, "attempt", attempt, "error", err)
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch dark source after %d attempt(s): %w", c.retries, lastErr)
}

func (c *DarkClient) fetchOnce(ctx context.Context, target string, timeout time.Duration, maxBytes int) (*DarkResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.clientFor(target).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLLike(contentType) {
		return nil, fmt.Errorf("unsupported content type: %q", contentType)
	}

	body, err := readCapped(resp.Body, maxBytes)
	if err != nil {
		return nil, err
	}

	markup := decodeMarkup(body, contentType)

	return &DarkResult{
		Markup:        markup,
		BytesReceived: len(body),
		StatusCode:    resp.StatusCode,
	}, nil
}

// clientFor selects the proxied transport only for onion-style hosts.
func (c *DarkClient) clientFor(target string) *http.Client {
	if IsOnionHost(target) {
		return c.proxiedClient
	}
	return c.directClient
}

// IsOnionHost reports whether the target's host is an anonymized-network
// address.
func IsOnionHost(target string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Hostname()), ".onion")
}

// isHTMLLike accepts text/html-style declarations. A missing declaration
// passes; the decoder falls back to UTF-8.
func isHTMLLike(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

// decodeMarkup decodes the body using the response-declared charset,
// falling back to UTF-8 with lossy replacement of undecodable bytes.
func decodeMarkup(body []byte, contentType string) string {
	if charset := declaredCharset(contentType); charset != "" && !strings.EqualFold(charset, "utf-8") {
		if enc, err := htmlindex.Get(charset); err == nil && enc != nil {
			decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
			if err == nil {
				return string(decoded)
			}
		}
	}
	return strings.ToValidUTF8(string(body), "�")
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
