package api

import (
	"net/http"

	"github.com/phrazzld/capture-api/internal/api/shared"
	"github.com/phrazzld/capture-api/internal/quota"
)

// QuotaReporter is the read side of *quota.Tracker.
type QuotaReporter interface {
	Stats() quota.Stats
	UserUsage(userID string) quota.Usage
}

// QuotaHandler serves GET /api/quota.
type QuotaHandler struct {
	tracker QuotaReporter
}

// NewQuotaHandler creates a QuotaHandler.
func NewQuotaHandler(tracker QuotaReporter) *QuotaHandler {
	return &QuotaHandler{tracker: tracker}
}

// GetQuota reports today's global usage and the caller's own.
func (h *QuotaHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats := h.tracker.Stats()
	usage := h.tracker.UserUsage(userID)

	shared.RespondWithJSON(w, r, http.StatusOK, QuotaResponse{
		Date:          stats.Date,
		GlobalUsed:    stats.GlobalUsed,
		GlobalLimit:   stats.GlobalLimit,
		ActiveUsers:   stats.ActiveUsers,
		UserUsed:      usage.Used,
		UserLimit:     usage.Limit,
		UserRemaining: usage.Remaining,
	})
}
