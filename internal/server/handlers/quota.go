package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/quota"
	apperrors "github.com/quotalens/quotalens/internal/errors"
)

// QuotaService is the client surface behind the quota endpoints.
type QuotaService interface {
	QuotaStatus() quota.Status
	RefreshQuota(ctx context.Context) (*client.Response, error)
}

// QuotaHandler serves the locally tracked quota.
type QuotaHandler struct {
	service QuotaService
}

// NewQuotaHandler returns a handler backed by service.
func NewQuotaHandler(service QuotaService) *QuotaHandler {
	return &QuotaHandler{service: service}
}

// RefreshResponse is returned by a successful refresh.
type RefreshResponse struct {
	Status     quota.Status `json:"status"`
	PolledAt   time.Time    `json:"polled_at"`
	StatusCode int          `json:"provider_status"`
	Attempts   int          `json:"attempts"`
}

// Status returns the tracked quota without contacting the provider.
func (h *QuotaHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("quota client not configured"))
		return
	}
	writeJSON(w, http.StatusOK, h.service.QuotaStatus())
}

// Refresh polls the provider's rate-limit endpoint. The poll counts against
// the tracked quota and is refused with 429 when a window is exhausted.
func (h *QuotaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("quota client not configured"))
		return
	}

	resp, err := h.service.RefreshQuota(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.FromClientError(r.Context(), err))
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Status:     h.service.QuotaStatus(),
		PolledAt:   resp.FetchedAt,
		StatusCode: resp.StatusCode,
		Attempts:   resp.Attempts,
	})
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
