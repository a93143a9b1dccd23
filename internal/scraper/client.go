package scraper

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

// captchaMarkers are body substrings that indicate an anti-bot interstitial
// rather than a product page.
var captchaMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("robot check"),
	[]byte("automated access"),
}

// Client fetches product pages with per-request politeness: a fixed delay
// before every request, a randomized User-Agent from the configured pool,
// and browser-like headers. Responses are decompressed manually so brotli
// is supported alongside gzip and deflate.
type Client struct {
	http   *http.Client
	opts   Options
	logger *slog.Logger
}

// NewClient creates a page fetcher from adapter options.
func NewClient(opts Options, logger *slog.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts:   opts,
		logger: logger.With("component", "page_client"),
	}
}

// GetPage fetches a URL and returns the decompressed body. Block conditions
// (CAPTCHA markers, blocking status codes) surface as a FetchError wrapping
// ErrBlocked with Retryable=false.
func (c *Client) GetPage(ctx context.Context, rawURL string) ([]byte, error) {
	// Politeness delay before the request, not between retries.
	if c.opts.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &FetchError{URL: rawURL, Err: ctx.Err(), Retryable: false}
		case <-time.After(c.opts.Delay):
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err, Retryable: false}
	}

	req.Header.Set("User-Agent", c.randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,es;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err, Retryable: isTransient(ctx, err)}
	}
	defer resp.Body.Close()

	reader, err := decompressReader(resp, resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err, Retryable: false}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err, Retryable: true}
	}

	if blockedResponse(resp.StatusCode, body) {
		c.logger.Warn("request blocked", "url", rawURL, "status", resp.StatusCode)
		return nil, blocked(rawURL, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
			Retryable:  resp.StatusCode >= 500,
		}
	}

	c.logger.Debug("page fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return body, nil
}

func (c *Client) randomUserAgent() string {
	if len(c.opts.UserAgents) == 0 {
		return "pricetrace/1.0"
	}
	return c.opts.UserAgents[rand.Intn(len(c.opts.UserAgents))]
}

// blockedResponse detects anti-bot rejections: hard-blocking status codes,
// or a CAPTCHA interstitial served with any status.
func blockedResponse(status int, body []byte) bool {
	if status == http.StatusForbidden || status == http.StatusTooManyRequests {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range captchaMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return status == http.StatusServiceUnavailable
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isTransient checks if a network error warrants a retry. Context
// cancellation is not transient; timeouts are.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	// net/http wraps transport errors; treat the rest of them as
	// transient too (connection reset, refused, unexpected EOF).
	return true
}
