package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/quota"
)

type stubQuotaService struct {
	status  quota.Status
	resp    *client.Response
	err     error
	refresh int
}

func (s *stubQuotaService) QuotaStatus() quota.Status {
	return s.status
}

func (s *stubQuotaService) RefreshQuota(ctx context.Context) (*client.Response, error) {
	s.refresh++
	return s.resp, s.err
}

func testStatus() quota.Status {
	reset := time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)
	return quota.Status{
		Initialized: true,
		LastPoll:    &reset,
		Windows: []quota.WindowStatus{
			{Window: quota.WindowSecond, Max: 20, Remaining: 19, ResetAt: reset},
			{Window: quota.WindowMonth, Max: 11000, Remaining: 10995, ResetAt: reset},
		},
	}
}

func TestQuotaStatusHandler(t *testing.T) {
	svc := &stubQuotaService{status: testStatus()}
	handler := NewQuotaHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.refresh)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["initialized"])
	assert.Equal(t, "2026-03-01T12:00:01Z", body["last_poll_time"])

	windows := body["windows"].([]any)
	require.Len(t, windows, 2)
	first := windows[0].(map[string]any)
	assert.Equal(t, "SECOND", first["window"])
	assert.EqualValues(t, 19, first["remaining"])
	assert.Equal(t, "2026-03-01T12:00:01Z", first["reset_time"])
}

func TestQuotaRefreshHandler(t *testing.T) {
	svc := &stubQuotaService{
		status: testStatus(),
		resp:   &client.Response{StatusCode: http.StatusOK, Attempts: 1, FetchedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	handler := NewQuotaHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/quota/refresh", nil)
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.refresh)

	var body RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusOK, body.StatusCode)
	assert.Equal(t, 1, body.Attempts)
	assert.True(t, body.Status.Initialized)
}

func TestQuotaRefreshHandlerExhausted(t *testing.T) {
	svc := &stubQuotaService{
		err: &quota.ExhaustedError{Window: quota.WindowSecond, Max: 20, ResetAt: time.Now().Add(time.Second)},
	}
	handler := NewQuotaHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/quota/refresh", nil)
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "QUOTA_EXHAUSTED", body.Error.Code)
	assert.Equal(t, "SECOND", body.Error.Details["window"])
}

func TestQuotaHandlerWithoutService(t *testing.T) {
	handler := NewQuotaHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
