// Package engine runs probe plans: ordered endpoint calls through the
// quota-tracked client, summarized into a report.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/quota"
)

// Outcome classifies a probe result.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeHTTPError      Outcome = "http_error"
	OutcomeAPIError       Outcome = "api_error"
	OutcomeQuotaExhausted Outcome = "quota_exhausted"
	OutcomeTransportError Outcome = "transport_error"
)

// Fetcher is the client surface the runner needs.
type Fetcher interface {
	Get(ctx context.Context, endpoint string, params url.Values) (*client.Response, error)
	QuotaStatus() quota.Status
}

// Runner executes plans sequentially.
type Runner struct {
	Client Fetcher
	Logger *logging.Logger
	Clock  func() time.Time
}

// ProbeResult is the outcome of one plan endpoint.
type ProbeResult struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Query      string        `json:"query,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	Shape      string        `json:"shape,omitempty"`
	ErrText    string        `json:"err,omitempty"`
	WarnText   string        `json:"warn,omitempty"`
	Message    string        `json:"message,omitempty"`
	Deprecated bool          `json:"deprecated"`
	FromCache  bool          `json:"from_cache"`
	Duration   time.Duration `json:"duration"`
}

// Report summarizes a plan run.
type Report struct {
	RunID       string        `json:"run_id"`
	Plan        string        `json:"plan"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Results     []ProbeResult `json:"results"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	CacheHits   int           `json:"cache_hits"`
	MonthBefore int           `json:"month_remaining_before"`
	MonthAfter  int           `json:"month_remaining_after"`
	CallsUsed   int           `json:"calls_used"`
}

// Run probes every endpoint in order. Endpoint failures are recorded in the
// report; only a cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Report, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("runner client is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		Plan:        plan.Name,
		StartedAt:   r.now(),
		MonthBefore: r.Client.QuotaStatus().Remaining(quota.WindowMonth),
		Results:     make([]ProbeResult, 0, len(plan.Endpoints)),
	}

	for i, ep := range plan.Endpoints {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		params := ep.Query(plan.Vars)
		if r.Logger != nil {
			r.Logger.Debug("Probing endpoint",
				zap.String("run_id", report.RunID),
				zap.Int("index", i+1),
				zap.Int("total", len(plan.Endpoints)),
				zap.String("path", ep.Path))
		}

		result := r.probe(ctx, ep, params)
		if errors.Is(ctx.Err(), context.Canceled) {
			return report, ctx.Err()
		}
		report.add(result)
	}

	report.FinishedAt = r.now()
	report.MonthAfter = r.Client.QuotaStatus().Remaining(quota.WindowMonth)
	report.CallsUsed = report.MonthBefore - report.MonthAfter
	if report.CallsUsed < 0 {
		report.CallsUsed = 0
	}

	if r.Logger != nil {
		r.Logger.Info("Probe run complete",
			zap.String("run_id", report.RunID),
			zap.String("plan", report.Plan),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("total", report.Total),
			zap.Int("calls_used", report.CallsUsed))
	}
	return report, nil
}

func (r *Runner) probe(ctx context.Context, ep PlanEndpoint, params url.Values) ProbeResult {
	result := ProbeResult{
		Name:  ep.Label(),
		Path:  ep.Path,
		Query: params.Encode(),
	}

	started := r.now()
	resp, err := r.Client.Get(ctx, ep.Path, params)
	result.Duration = r.now().Sub(started)
	result.Outcome = Classify(err)
	if err != nil {
		result.Message = err.Error()
	}

	if resp == nil {
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Deprecated = resp.Deprecated
	result.FromCache = resp.FromCache
	if resp.Duration > 0 {
		result.Duration = resp.Duration
	}
	result.ErrText = resp.Err.String()
	result.WarnText = resp.Warn.String()
	if len(resp.Data) > 0 {
		result.Shape = SummarizeData(resp.Data)
	}
	return result
}

func (rep *Report) add(result ProbeResult) {
	rep.Results = append(rep.Results, result)
	rep.Total++
	if result.Outcome == OutcomeOK {
		rep.Succeeded++
	} else {
		rep.Failed++
	}
	if result.FromCache {
		rep.CacheHits++
	}
}

// Classify maps a client error to a probe outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}

	var (
		httpErr      *client.HTTPError
		apiErr       *client.APIError
		transportErr *client.TransportError
	)
	switch {
	case errors.Is(err, quota.ErrQuotaExhausted):
		return OutcomeQuotaExhausted
	case errors.As(err, &httpErr):
		return OutcomeHTTPError
	case errors.As(err, &apiErr):
		return OutcomeAPIError
	case errors.As(err, &transportErr):
		return OutcomeTransportError
	default:
		return OutcomeTransportError
	}
}

// SummarizeData describes the shape of a response's Data field, or of the
// whole body when there is none.
func SummarizeData(body json.RawMessage) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if data, ok := envelope["Data"]; ok {
			return "Data: " + describe(data)
		}
	}
	return "Response: " + describe(body)
}

func describe(raw json.RawMessage) string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "invalid JSON"
	}

	switch v := value.(type) {
	case nil:
		return "empty"
	case map[string]any:
		if len(v) == 0 {
			return "empty"
		}
		return fmt.Sprintf("dict with keys [%s]", strings.Join(sortedKeys(v), ", "))
	case []any:
		if len(v) == 0 {
			return "empty"
		}
		if first, ok := v[0].(map[string]any); ok {
			return fmt.Sprintf("list of %d items, sample keys [%s]", len(v), strings.Join(sortedKeys(first), ", "))
		}
		return fmt.Sprintf("list of %d items", len(v))
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Runner) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
