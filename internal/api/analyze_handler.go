package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/capture-api/internal/api/shared"
	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/platform/google"
	"github.com/phrazzld/capture-api/internal/platform/logger"
	"github.com/phrazzld/capture-api/internal/redact"
	"github.com/phrazzld/capture-api/internal/vision"
)

// AnalysisPipeline is the subset of *pipeline.Pipeline the handlers use.
type AnalysisPipeline interface {
	SubmitAsync(ctx context.Context, userID string, image []byte) (string, error)
	AnalyzeSync(ctx context.Context, userID string, image []byte) (*vision.Result, error)
	Status(jobID string) (domain.Job, bool)
}

// CalendarWriter creates calendar entries. *google.CalendarWriter
// implements it.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, accessToken string, ev domain.ExtractedEvent) (google.CreatedEvent, error)
}

// AnalyzeHandler serves the analysis and job status endpoints.
type AnalyzeHandler struct {
	pipeline     AnalysisPipeline
	calendar     CalendarWriter
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewAnalyzeHandler creates an AnalyzeHandler. calendar may be nil, which
// disables calendar writes.
func NewAnalyzeHandler(
	p AnalysisPipeline,
	calendar CalendarWriter,
	maxImageBytes int,
	logger *slog.Logger,
) *AnalyzeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeHandler{
		pipeline:     p,
		calendar:     calendar,
		maxBodyBytes: maxBodyBytes(maxImageBytes),
		logger:       logger.With("component", "analyze_handler"),
	}
}

// Analyze handles POST /api/analyze.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if !decodeJSONBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.pipeline.AnalyzeSync(r.Context(), userID, image)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := AnalyzeResponse{
		Found:   result.Found,
		Events:  result.Events,
		RawText: result.RawText,
	}
	if resp.Events == nil {
		resp.Events = []domain.ExtractedEvent{}
	}

	if req.CreateEvents && len(result.Events) > 0 {
		token := req.CalendarAccessToken
		if token == "" {
			token = bearerFromRequest(r)
		}
		resp.CalendarEvents = h.createCalendarEvents(r.Context(), token, result.Events)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// createCalendarEvents writes each event, reporting failures per event so
// one rejected write does not hide the analysis result.
func (h *AnalyzeHandler) createCalendarEvents(
	ctx context.Context,
	accessToken string,
	events []domain.ExtractedEvent,
) []CalendarEventResult {
	log := logger.FromContext(ctx)
	results := make([]CalendarEventResult, 0, len(events))

	for _, ev := range events {
		outcome := CalendarEventResult{Title: ev.Title}
		if h.calendar == nil {
			outcome.Error = "Calendar integration unavailable"
			results = append(results, outcome)
			continue
		}

		created, err := h.calendar.CreateEvent(ctx, accessToken, ev)
		if err != nil {
			log.Warn("calendar write failed", "title", ev.Title, "error", redact.Error(err))
			outcome.Error = "Failed to create calendar event"
			if errors.Is(err, google.ErrInvalidAccessToken) {
				outcome.Error = GetSafeErrorMessage(err)
			}
		} else {
			outcome.EventID = created.ID
			outcome.HTMLLink = created.HTMLLink
		}
		results = append(results, outcome)
	}
	return results
}

// AnalyzeAsync handles POST /api/analyze/async.
func (h *AnalyzeHandler) AnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req AsyncAnalyzeRequest
	if !decodeJSONBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	jobID, err := h.pipeline.SubmitAsync(r.Context(), userID, image)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, AsyncAnalyzeResponse{
		JobID:  jobID,
		Status: string(domain.JobStatusProcessing),
	})
}

// GetJob handles GET /api/jobs/{id}. Jobs of other users are reported as
// not found.
func (h *AnalyzeHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	jobID := chi.URLParam(r, "id")
	j, found := h.pipeline.Status(jobID)
	if !found || j.UserID != userID {
		shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(j))
}
