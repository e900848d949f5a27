package core

import (
	"net/http"
	"time"
)

// CachedResponse is a successful provider response kept for reuse.
type CachedResponse struct {
	Key        string      `json:"key"`
	Endpoint   string      `json:"endpoint"`
	Query      string      `json:"query,omitempty"`
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	FetchedAt  time.Time   `json:"fetched_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// PollSource identifies what triggered a quota poll.
type PollSource string

const (
	PollSourceInit    PollSource = "init"
	PollSourceRefresh PollSource = "refresh"
)

// PollCounter is one window's counters as reported by the provider.
type PollCounter struct {
	Window    string `json:"window"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
	CallsMade int    `json:"calls_made"`
}

// QuotaPoll records a provider rate-limit snapshot.
type QuotaPoll struct {
	ID       int64         `json:"id,omitempty"`
	PolledAt time.Time     `json:"polled_at"`
	Source   PollSource    `json:"source"`
	BaseURL  string        `json:"base_url,omitempty"`
	Counters []PollCounter `json:"counters"`
}

// Counter returns the counters for a window name.
func (p QuotaPoll) Counter(window string) (PollCounter, bool) {
	for _, counter := range p.Counters {
		if counter.Window == window {
			return counter, true
		}
	}
	return PollCounter{}, false
}
