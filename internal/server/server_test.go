package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/quota"
	apperrors "github.com/quotalens/quotalens/internal/errors"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServerQuotaRoutes(t *testing.T) {
	tracker := quota.NewTracker(quota.DefaultLimits, nil)
	c, err := client.New(client.Options{BaseURL: "http://127.0.0.1:1", Tracker: tracker, MinInterval: -1})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	srv := New("127.0.0.1", 0, WithQuotaService(c), WithMetrics(false))

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var status quota.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Initialized {
		t.Fatal("expected uninitialized tracker")
	}
	if got := status.Remaining(quota.WindowMonth); got != 11000 {
		t.Fatalf("expected MONTH remaining 11000, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected /metrics to be disabled, got %d", rec.Code)
	}
}

func TestServerRefreshRefusedWhenExhausted(t *testing.T) {
	tracker := quota.NewTracker(quota.DefaultLimits.WithOverrides(map[string]int{"second": 1}), nil)
	if err := tracker.CheckAndConsume(); err != nil {
		t.Fatalf("consume: %v", err)
	}
	c, err := client.New(client.Options{BaseURL: "http://127.0.0.1:1", Tracker: tracker, MinInterval: -1})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	srv := New("127.0.0.1", 0, WithQuotaService(c))

	req := httptest.NewRequest(http.MethodPost, "/v1/quota/refresh", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Error.Code != apperrors.CodeQuotaExhausted {
		t.Fatalf("expected QUOTA_EXHAUSTED, got %s", body.Error.Code)
	}
}
