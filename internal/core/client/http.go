package client

import (
	"net/http"
	"strings"
	"time"
)

// RateHeaders are the provider's own rate-limit response headers, kept verbatim.
type RateHeaders struct {
	Limit        string `json:"limit,omitempty"`
	Remaining    string `json:"remaining,omitempty"`
	RemainingAll string `json:"remaining_all,omitempty"`
	Reset        string `json:"reset,omitempty"`
	ResetAll     string `json:"reset_all,omitempty"`
}

// Empty reports whether no rate-limit header was present.
func (h RateHeaders) Empty() bool {
	return h == RateHeaders{}
}

func rateHeaders(header http.Header) RateHeaders {
	if header == nil {
		return RateHeaders{}
	}
	return RateHeaders{
		Limit:        header.Get("X-Ratelimit-Limit"),
		Remaining:    header.Get("X-Ratelimit-Remaining"),
		RemainingAll: header.Get("X-Ratelimit-Remaining-All"),
		Reset:        header.Get("X-Ratelimit-Reset"),
		ResetAll:     header.Get("X-Ratelimit-Reset-All"),
	}
}

func deprecated(header http.Header) bool {
	if header == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(header.Get("Deprecation")), "true")
}

func retryAfterHeader(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}

	retry := strings.TrimSpace(header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		if wait := parsed.Sub(now); wait > 0 {
			return wait
		}
	}
	return 0
}
