package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"
)

// HealthResponse is the aggregate /health payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the payload of the live, ready and startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is a component that can report its own health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// DegradedError marks a check failure that lowers the aggregate status to
// degraded without failing readiness. A spent short quota window is the usual
// case: it refills on its own.
type DegradedError struct {
	Err error
}

func (e *DegradedError) Error() string { return e.Err.Error() }
func (e *DegradedError) Unwrap() error { return e.Err }

// Degraded wraps err as a DegradedError.
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return &DegradedError{Err: err}
}

// HealthManager runs the registered checkers for every health endpoint.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
	started  time.Time
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
		started:  time.Now(),
	}
}

// RegisterChecker adds or replaces the checker called name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// runHealthChecks runs every checker concurrently. Checkers still running when
// ctx ends are reported as timeout.
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(names))
	for _, name := range names {
		checkers[name] = hm.checkers[name]
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	type result struct {
		name   string
		status string
	}
	results := make(chan result, len(names))
	for _, name := range names {
		go func(name string, checker HealthChecker) {
			results <- result{name: name, status: classify(checker.CheckHealth(ctx))}
		}(name, checkers[name])
	}

	checks := make(map[string]string, len(names))
	for range names {
		select {
		case r := <-results:
			checks[r.name] = r.status
		case <-ctx.Done():
			for _, name := range names {
				if _, done := checks[name]; !done {
					checks[name] = statusTimeout
				}
			}
			return checks
		}
	}
	return checks
}

func classify(err error) string {
	var degraded *DegradedError
	switch {
	case err == nil:
		return statusHealthy
	case stderrors.As(err, &degraded):
		return statusDegraded
	default:
		return statusUnhealthy
	}
}

// determineOverallStatus folds per-check results: any unhealthy check wins,
// then degraded or timeout, else healthy.
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	overall := statusHealthy
	for _, status := range checks {
		switch status {
		case statusUnhealthy:
			return statusUnhealthy
		case statusDegraded, statusTimeout:
			overall = statusDegraded
		}
	}
	return overall
}

// HealthHandler serves the aggregate check with per-checker results.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := hm.runHealthChecks(ctx)
	status := hm.determineOverallStatus(checks)
	if status == statusUnhealthy {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "aggregate health check failed")
		respondWithError(w, r, enrichHealthEnvelope(envelope, "", status, checks))
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Checks:    checks,
	})
}

// LivenessHandler answers as long as the process can serve HTTP; it never
// consults the checkers, so a spent quota does not get the pod restarted.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: statusHealthy, Timestamp: time.Now().UTC()})
}

// ReadinessHandler fails while any checker is unhealthy.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "ready", 5*time.Second)
}

// StartupHandler fails until every checker has passed or degraded.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "startup", 3*time.Second)
}

func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, name string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks := hm.runHealthChecks(ctx)
	status := hm.determineOverallStatus(checks)
	if status == statusUnhealthy {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", name+" probe failed")
		respondWithError(w, r, enrichHealthEnvelope(envelope, name, status, checks))
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{"status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != statusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	ctxData := map[string]interface{}{"status": status}
	if probe != "" {
		ctxData["probe"] = probe
	}
	if len(failing) > 0 {
		ctxData["unhealthy_checks"] = failing
	}
	if updated, err := envelope.WithContext(ctxData); err == nil {
		envelope = updated
	}
	return envelope
}

var (
	globalMu            sync.RWMutex
	globalHealthManager *HealthManager
)

// InitHealthManager installs a fresh process-wide manager.
func InitHealthManager(version string) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide manager, or nil before InitHealthManager.
func GetHealthManager() *HealthManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalHealthManager
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	withGlobal(w, r, "live", (*HealthManager).LivenessHandler)
}

func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	withGlobal(w, r, "ready", (*HealthManager).ReadinessHandler)
}

func StartupHandler(w http.ResponseWriter, r *http.Request) {
	withGlobal(w, r, "startup", (*HealthManager).StartupHandler)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	withGlobal(w, r, "aggregate", (*HealthManager).HealthHandler)
}

func withGlobal(w http.ResponseWriter, r *http.Request, probe string, handler func(*HealthManager, http.ResponseWriter, *http.Request)) {
	if hm := GetHealthManager(); hm != nil {
		handler(hm, w, r)
		return
	}

	envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health manager not initialized")
	respondWithError(w, r, enrichHealthEnvelope(envelope, probe, "unknown", nil))
}
