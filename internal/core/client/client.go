package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quotalens/quotalens/internal/core"
	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/metrics"
)

const (
	// DefaultBaseURL is the CoinDesk Data API root.
	DefaultBaseURL = "https://data-api.coindesk.com"

	// RateLimitEndpoint reports the key's quota across all windows.
	RateLimitEndpoint = "/admin/v2/rate/limit"

	DefaultTimeout      = 30 * time.Second
	DefaultRetryBackoff = time.Second
	DefaultMinInterval  = 2 * time.Second

	// APIKeyHeader carries the key on every request.
	APIKeyHeader = "x-api-key"

	maxAttempts = 2
)

// maxBodyBytes caps how much of a response body is read.
var maxBodyBytes int64 = 32 << 20

// Options configures a Client. Zero durations select the defaults; a negative
// MinInterval disables pacing, a negative RetryBackoff retries immediately and
// a negative CacheTTL disables response caching.
type Options struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	RetryBackoff time.Duration
	MinInterval  time.Duration
	CacheTTL     time.Duration

	Tracker    *quota.Tracker
	Cache      ResponseCache
	Polls      PollRecorder
	HTTPClient *http.Client
	Logger     *logging.Logger
	Clock      func() time.Time
}

// Client issues provider calls through the local quota tracker.
type Client struct {
	baseURL      *url.URL
	apiKey       string
	timeout      time.Duration
	retryBackoff time.Duration
	cacheTTL     time.Duration

	tracker    *quota.Tracker
	limiter    *rate.Limiter
	cache      ResponseCache
	polls      PollRecorder
	httpClient *http.Client
	logger     *logging.Logger
	clock      func() time.Time
}

type callMode struct {
	track bool
	pace  bool
}

var (
	trackedPaced   = callMode{track: true, pace: true}
	trackedUnpaced = callMode{track: true}
	untracked      = callMode{}
)

// New builds a client. It performs no I/O.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", raw)
	}

	c := &Client{
		baseURL:      base,
		apiKey:       strings.TrimSpace(opts.APIKey),
		timeout:      durationOrDefault(opts.Timeout, DefaultTimeout),
		retryBackoff: durationOrDefault(opts.RetryBackoff, DefaultRetryBackoff),
		cacheTTL:     durationOrDefault(opts.CacheTTL, DefaultCacheTTL),
		tracker:      opts.Tracker,
		cache:        opts.Cache,
		polls:        opts.Polls,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		clock:        opts.Clock,
	}

	if c.timeout < 0 {
		c.timeout = DefaultTimeout
	}
	if c.retryBackoff < 0 {
		c.retryBackoff = 0
	}
	if c.cacheTTL < 0 {
		c.cache = nil
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.tracker == nil {
		c.tracker = quota.NewTracker(quota.DefaultLimits, c.now)
	}

	interval := durationOrDefault(opts.MinInterval, DefaultMinInterval)
	if interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	if c.apiKey == "" && c.logger != nil {
		c.logger.Warn("No API key configured; requests will be sent without authentication")
	}

	return c, nil
}

// BaseURL returns the provider root the client talks to.
func (c *Client) BaseURL() string {
	if c == nil || c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// Tracker exposes the tracker backing the client.
func (c *Client) Tracker() *quota.Tracker {
	if c == nil {
		return nil
	}
	return c.tracker
}

// QuotaStatus returns the tracked quota without any I/O.
func (c *Client) QuotaStatus() quota.Status {
	if c == nil || c.tracker == nil {
		return quota.Status{}
	}
	return c.tracker.Status()
}

// InitializeQuota polls the rate-limit endpoint once, untracked and unpaced, and
// seeds the tracker from it. Failures return *InitError and leave the tracker on
// its defaults.
func (c *Client) InitializeQuota(ctx context.Context) (*quota.Snapshot, error) {
	if c == nil || c.tracker == nil {
		return nil, ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := c.do(ctx, RateLimitEndpoint, nil, untracked)
	if err != nil {
		initErr := &InitError{Err: err}
		c.warn("Could not initialize quota, using defaults", RateLimitEndpoint, initErr)
		return nil, initErr
	}

	snapshot, err := c.applySnapshot(ctx, resp, core.PollSourceInit)
	if err != nil {
		initErr := &InitError{StatusCode: resp.StatusCode, Err: err}
		c.warn("Could not initialize quota, using defaults", RateLimitEndpoint, initErr)
		return nil, initErr
	}
	return snapshot, nil
}

// RefreshQuota re-polls the rate-limit endpoint. The poll counts against the
// quota like any other call.
func (c *Client) RefreshQuota(ctx context.Context) (*Response, error) {
	if c == nil || c.tracker == nil {
		return nil, ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := c.do(ctx, RateLimitEndpoint, nil, trackedUnpaced)
	if err != nil {
		return nil, err
	}
	if _, err := c.applySnapshot(ctx, resp, core.PollSourceRefresh); err != nil {
		return resp, fmt.Errorf("refresh quota: %w", err)
	}

	status := c.tracker.Status()
	resp.Quota = &status
	return resp, nil
}

// Get performs a tracked, paced GET. Cached responses are returned without
// consuming quota. A response is returned alongside *HTTPError or *APIError when
// the provider answered with a failure.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	if c == nil || c.tracker == nil {
		return nil, ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = normalizeEndpoint(endpoint)
	key := CacheKey(endpoint, params)

	if cached := c.lookupCache(ctx, key); cached != nil {
		status := c.tracker.Status()
		cached.Quota = &status
		return cached, cached.Check()
	}

	resp, err := c.do(ctx, endpoint, params, trackedPaced)
	if err != nil {
		return nil, err
	}
	c.storeCache(ctx, key, params, resp)
	return resp, resp.Check()
}

func (c *Client) applySnapshot(ctx context.Context, resp *Response, source core.PollSource) (*quota.Snapshot, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: resp.URL, Body: resp.ErrorText}
	}

	snapshot, err := quota.ParseSnapshot(resp.Body())
	if err != nil {
		return nil, err
	}
	if err := c.tracker.Initialize(snapshot); err != nil {
		return nil, err
	}

	status := c.tracker.Status()
	metrics.ObserveQuota(status)
	c.recordPoll(ctx, snapshot, source)

	if c.logger != nil {
		month, _ := status.Window(quota.WindowMonth)
		c.logger.Info("Quota initialized from provider",
			zap.String("source", string(source)),
			zap.Int("month_remaining", month.Remaining),
			zap.Int("month_max", month.Max))
	}
	return snapshot, nil
}

func (c *Client) recordPoll(ctx context.Context, snapshot *quota.Snapshot, source core.PollSource) {
	if c.polls == nil {
		return
	}

	poll := &core.QuotaPoll{
		PolledAt: c.now(),
		Source:   source,
		BaseURL:  c.BaseURL(),
	}
	for _, w := range quota.Windows {
		counter := core.PollCounter{Window: w.String()}
		counter.Max, _ = snapshot.Max(w)
		counter.Remaining, _ = snapshot.Remaining(w)
		if made := snapshot.Data.APIKey.CallsMade; made != nil {
			counter.CallsMade = made[w.String()]
		}
		poll.Counters = append(poll.Counters, counter)
	}

	if err := c.polls.RecordQuotaPoll(ctx, poll); err != nil {
		c.warn("Failed to record quota poll", RateLimitEndpoint, err)
	}
}

// do runs up to maxAttempts attempts. Each attempt is paced (when paced) before
// the tracker records it (when tracked); only timeouts are retried.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values, mode callMode) (*Response, error) {
	target := c.resolve(endpoint, params)
	req, err := c.newRequest(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if mode.pace && c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("pace request: %w", err)
			}
		}

		if mode.track {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := c.tracker.CheckAndConsume(); err != nil {
				var exhausted *quota.ExhaustedError
				if errors.As(err, &exhausted) {
					metrics.RecordQuotaRefusal(exhausted.Window)
				}
				if c.logger != nil {
					c.logger.Warn("Request refused by local quota",
						zap.String("endpoint", endpoint),
						zap.Error(err))
				}
				return nil, err
			}
			metrics.ObserveQuota(c.tracker.Status())
		}

		resp, err := c.send(ctx, endpoint, req)
		if err == nil {
			resp.Attempts = attempt
			metrics.RecordAPIStatus(endpoint, resp.StatusCode)
			return resp, nil
		}

		timeout := isTimeout(ctx, err)
		if timeout {
			metrics.RecordAPICall(endpoint, "timeout")
		} else {
			metrics.RecordAPICall(endpoint, "transport_error")
		}

		if !timeout || attempt >= maxAttempts {
			return nil, &TransportError{URL: target, Attempts: attempt, Timeout: timeout, Err: err}
		}

		if c.logger != nil {
			c.logger.Warn("Request timed out, retrying",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", c.retryBackoff))
		}
		if err := sleep(ctx, c.retryBackoff); err != nil {
			return nil, &TransportError{URL: target, Attempts: attempt, Timeout: true, Err: err}
		}
	}
}

func (c *Client) newRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, endpoint string, req *http.Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := req.URL.String()
	start := c.now()
	resp, err := c.httpClient.Do(req.WithContext(attemptCtx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, maxBodyBytes, target)
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	out := newResponse(endpoint, finalURL, resp.StatusCode, resp.Header, body, c.now())
	out.Duration = out.FetchedAt.Sub(start)
	status := c.tracker.Status()
	out.Quota = &status
	return out, nil
}

func (c *Client) resolve(endpoint string, params url.Values) string {
	target := *c.baseURL
	target.Path = strings.TrimRight(c.baseURL.Path, "/") + normalizeEndpoint(endpoint)
	target.RawQuery = ""
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}
	return target.String()
}

func (c *Client) warn(msg, endpoint string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Warn(msg, zap.String("endpoint", endpoint), zap.Error(err))
}

func (c *Client) now() time.Time {
	if c != nil && c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func durationOrDefault(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}
