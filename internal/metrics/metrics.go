package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quotalens/quotalens/internal/core/quota"
)

// Metric names
const (
	APICallsName            = "quotalens_api_calls_total"
	QuotaRefusalsName       = "quotalens_quota_refusals_total"
	QuotaRemainingName      = "quotalens_quota_remaining"
	CacheLookupsName        = "quotalens_cache_lookups_total"
	HTTPRequestsName        = "quotalens_http_requests_total"
	HTTPRequestDurationName = "quotalens_http_request_duration_seconds"
	ErrorsTotalName         = "quotalens_errors_total"
	PanicsTotalName         = "quotalens_panics_total"
)

type collectorSet struct {
	apiCalls       *prometheus.CounterVec
	quotaRefusals  *prometheus.CounterVec
	quotaRemaining *prometheus.GaugeVec
	cacheLookups   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	errorsByRoute  *prometheus.CounterVec
	panicsTotal    prometheus.Counter
}

var (
	mu      sync.RWMutex
	current *collectorSet
)

// Init creates the application collectors and registers them with reg.
// Recording functions are no-ops until Init succeeds.
func Init(reg prometheus.Registerer) error {
	set := &collectorSet{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: APICallsName,
			Help: "Provider API calls issued, by endpoint and status",
		}, []string{"endpoint", "status"}),
		quotaRefusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: QuotaRefusalsName,
			Help: "Calls refused locally because a quota window was exhausted",
		}, []string{"window"}),
		quotaRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: QuotaRemainingName,
			Help: "Locally tracked remaining calls per quota window",
		}, []string{"window"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: CacheLookupsName,
			Help: "Response cache lookups by result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: HTTPRequestsName,
			Help: "HTTP requests served",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    HTTPRequestDurationName,
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ErrorsTotalName,
			Help: "Error responses by code and HTTP status",
		}, []string{"error_code", "http_status"}),
		errorsByRoute: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotalens_errors_by_endpoint_total",
			Help: "Error responses by request path and code",
		}, []string{"endpoint", "error_code"}),
		panicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: PanicsTotalName,
			Help: "Recovered handler panics",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			set.apiCalls, set.quotaRefusals, set.quotaRemaining, set.cacheLookups,
			set.httpRequests, set.httpDuration, set.errorsTotal, set.errorsByRoute, set.panicsTotal,
		} {
			if err := reg.Register(c); err != nil {
				return err
			}
		}
	}

	mu.Lock()
	current = set
	mu.Unlock()
	return nil
}

// Reset disables recording until the next Init.
func Reset() {
	mu.Lock()
	current = nil
	mu.Unlock()
}

func active() *collectorSet {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// RecordAPICall counts one provider call. status is the HTTP code or a failure kind.
func RecordAPICall(endpoint string, status string) {
	if c := active(); c != nil {
		c.apiCalls.WithLabelValues(endpoint, status).Inc()
	}
}

// RecordAPIStatus counts one provider call that returned an HTTP status.
func RecordAPIStatus(endpoint string, statusCode int) {
	RecordAPICall(endpoint, strconv.Itoa(statusCode))
}

// RecordQuotaRefusal counts a call refused by the local tracker.
func RecordQuotaRefusal(window quota.Window) {
	if c := active(); c != nil {
		c.quotaRefusals.WithLabelValues(window.String()).Inc()
	}
}

// ObserveQuota publishes the tracked remaining count of every window.
func ObserveQuota(status quota.Status) {
	c := active()
	if c == nil {
		return
	}
	for _, ws := range status.Windows {
		c.quotaRemaining.WithLabelValues(ws.Window.String()).Set(float64(ws.Remaining))
	}
}

// RecordCacheLookup counts a response cache lookup: hit, miss or error.
func RecordCacheLookup(result string) {
	if c := active(); c != nil {
		c.cacheLookups.WithLabelValues(result).Inc()
	}
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	c := active()
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError records an error with code and status
func RecordError(errorCode string, httpStatus int) {
	if c := active(); c != nil {
		c.errorsTotal.WithLabelValues(errorCode, strconv.Itoa(httpStatus)).Inc()
	}
}

// RecordErrorByEndpoint records an error by endpoint
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if c := active(); c != nil {
		c.errorsByRoute.WithLabelValues(endpoint, errorCode).Inc()
	}
}

// RecordPanic records a panic recovery
func RecordPanic() {
	if c := active(); c != nil {
		c.panicsTotal.Inc()
	}
}
