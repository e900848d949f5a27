package client

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNotConfigured is returned when a nil or incomplete client is used.
var ErrNotConfigured = errors.New("client is not configured")

// ErrBodyTooLarge is returned when a response body exceeds the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// InitError reports a failed bootstrap poll. The tracker keeps its defaults.
type InitError struct {
	StatusCode int
	Err        error
}

func (e *InitError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("initialize quota: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("initialize quota: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// TransportError reports a network failure or timeout after all attempts.
type TransportError struct {
	URL      string
	Attempts int
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	kind := "request failed"
	if e.Timeout {
		kind = "request timed out"
	}
	return fmt.Sprintf("%s after %d attempt(s): %s: %v", kind, e.Attempts, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError accompanies a response with a non-2xx status.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	body := truncateRunes(e.Body, 200)
	if body == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, body)
}

// APIError accompanies a response whose body carries a provider Err message.
type APIError struct {
	URL     string
	Type    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error from %s (type %d): %s", e.URL, e.Type, e.Message)
}

// truncateRunes shortens s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
