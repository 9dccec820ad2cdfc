package api

import (
	"net/http"
	"time"

	"github.com/phrazzld/capture-api/internal/api/shared"
)

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}
