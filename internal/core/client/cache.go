package client

import (
	"context"
	"net/url"
	"time"

	"github.com/quotalens/quotalens/internal/core"
	"github.com/quotalens/quotalens/internal/metrics"
)

// DefaultCacheTTL is how long a successful response is reused.
const DefaultCacheTTL = 5 * time.Minute

// ResponseCache stores successful responses so repeated reads cost no quota.
// GetResponse returns nil, nil on a miss or an expired entry.
type ResponseCache interface {
	GetResponse(ctx context.Context, key string) (*core.CachedResponse, error)
	SetResponse(ctx context.Context, entry *core.CachedResponse, ttl time.Duration) error
}

// PollRecorder keeps an audit trail of quota snapshots.
type PollRecorder interface {
	RecordQuotaPoll(ctx context.Context, poll *core.QuotaPoll) error
}

// CacheKey builds the cache key for an endpoint and query. Query keys are sorted.
func CacheKey(endpoint string, params url.Values) string {
	endpoint = normalizeEndpoint(endpoint)
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}

func (c *Client) lookupCache(ctx context.Context, key string) *Response {
	if c.cache == nil {
		return nil
	}

	entry, err := c.cache.GetResponse(ctx, key)
	if err != nil {
		c.warn("Response cache lookup failed", key, err)
		metrics.RecordCacheLookup("error")
		return nil
	}
	if entry == nil || !entry.ExpiresAt.After(c.now()) {
		metrics.RecordCacheLookup("miss")
		return nil
	}
	metrics.RecordCacheLookup("hit")

	resp := newResponse(entry.Endpoint, c.resolve(entry.Endpoint, parseQuery(entry.Query)), entry.StatusCode, entry.Header, entry.Body, entry.FetchedAt)
	resp.FromCache = true
	return resp
}

func (c *Client) storeCache(ctx context.Context, key string, params url.Values, resp *Response) {
	if c.cache == nil || resp == nil || resp.FromCache {
		return
	}
	if resp.StatusCode != 200 || resp.Check() != nil {
		return
	}

	entry := &core.CachedResponse{
		Key:        key,
		Endpoint:   resp.Endpoint,
		Query:      params.Encode(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.body,
		FetchedAt:  resp.FetchedAt,
		ExpiresAt:  resp.FetchedAt.Add(c.cacheTTL),
	}
	if err := c.cache.SetResponse(ctx, entry, c.cacheTTL); err != nil {
		c.warn("Response cache write failed", key, err)
	}
}

func parseQuery(raw string) url.Values {
	if raw == "" {
		return nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil
	}
	return values
}
