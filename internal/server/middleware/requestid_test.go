package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/metrics"
)

func TestRequestIDReusesCallerHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	req.Header.Set(RequestIDHeader, "poll-42:abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "poll-42:abc", seen)
	assert.Equal(t, "poll-42:abc", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	for name, header := range map[string]string{
		"empty":     "",
		"spaces":    "has spaces",
		"newline":   "a\nb",
		"oversized": strings.Repeat("x", maxRequestIDLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header[RequestIDHeader] = []string{header}
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			_, err := uuid.Parse(seen)
			require.NoError(t, err)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		})
	}
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Equal(t, "abc", GetRequestID(WithRequestID(context.Background(), "abc")))
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	reg := setupMetrics(t)

	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("tracker state corrupted")
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body panicBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.NotContains(t, rec.Body.String(), "tracker state corrupted")
	assert.Equal(t, 1.0, sampleCount(t, reg, metrics.PanicsTotalName, nil))
}
