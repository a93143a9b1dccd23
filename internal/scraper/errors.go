package scraper

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrNoScraper means no platform adapter recognizes the URL. This is
	// a user input error, not a system fault.
	ErrNoScraper = errors.New("no scraper available for URL")

	// ErrProductID means the adapter matched the platform but could not
	// derive a product id from the URL.
	ErrProductID = errors.New("could not extract product id from URL")

	// ErrBlocked means an anti-bot defense was detected (CAPTCHA marker,
	// blocking status code). Blocked fetches are never retried within the
	// same call.
	ErrBlocked = errors.New("blocked by anti-bot defenses")
)

// FetchError wraps errors that occur while fetching a page or API response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors caused by missing or malformed fields in an
// otherwise successful fetch.
type ParseError struct {
	URL   string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (field=%q): %v", e.URL, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// blocked builds the canonical blocked-fetch error for a URL.
func blocked(url string, statusCode int) *FetchError {
	return &FetchError{URL: url, StatusCode: statusCode, Err: ErrBlocked, Retryable: false}
}

// Retryable reports whether the retry policy should attempt the operation
// again. Blocks are terminal; transient fetch failures and parse failures
// (the layout may have shifted mid-response) are worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBlocked) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return true
	}
	return false
}
