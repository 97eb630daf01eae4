// Package integrations hosts outbound API clients and the HTTP plumbing
// they share: token-bucket rate limiting, retry with backoff, and audit
// reporting of every request attempt.
package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

// httpTimeout bounds each individual registry or GitHub call.
const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist upstream.
	// Callers treat this as data, not as a failure.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors,
	// 4xx/5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with the standard per-call timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// URLEncode percent-encodes a string for use in URLs.
func URLEncode(s string) string { return url.QueryEscape(s) }
