package api

import (
	"time"

	"github.com/phrazzld/capture-api/internal/domain"
)

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	// Image is the screenshot, base64 encoded, optionally as a data URL.
	Image string `json:"image" validate:"required"`

	// CreateEvents asks the server to add the extracted events to the
	// user's primary Google Calendar.
	CreateEvents bool `json:"create_events"`

	// CalendarAccessToken authorizes calendar writes. When empty the bearer
	// token of the request is used.
	CalendarAccessToken string `json:"calendar_access_token,omitempty"`
}

// AnalyzeResponse is the result of a synchronous analysis.
type AnalyzeResponse struct {
	Found          bool                    `json:"found"`
	Events         []domain.ExtractedEvent `json:"events"`
	RawText        string                  `json:"raw_text,omitempty"`
	CalendarEvents []CalendarEventResult   `json:"calendar_events,omitempty"`
}

// CalendarEventResult reports the calendar write for one extracted event.
type CalendarEventResult struct {
	Title    string `json:"title"`
	EventID  string `json:"event_id,omitempty"`
	HTMLLink string `json:"html_link,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AsyncAnalyzeRequest is the body of POST /api/analyze/async.
type AsyncAnalyzeRequest struct {
	Image string `json:"image" validate:"required"`
}

// AsyncAnalyzeResponse acknowledges an accepted job.
type AsyncAnalyzeResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the status of an asynchronous job. Result is set once the
// job completed and Error once it failed.
type JobResponse struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// JobResult holds the events of a completed job.
type JobResult struct {
	Events  []domain.ExtractedEvent `json:"events"`
	RawText string                  `json:"raw_text,omitempty"`
}

// RegisterDeviceRequest is the body of POST /api/devices.
type RegisterDeviceRequest struct {
	DeviceToken string `json:"device_token" validate:"required,max=200"`

	// Sandbox selects the development push environment. When omitted the
	// server default applies.
	Sandbox *bool `json:"sandbox,omitempty"`
}

// DeviceResponse acknowledges a registration.
type DeviceResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

// QuotaResponse reports today's usage.
type QuotaResponse struct {
	Date          string `json:"date"`
	GlobalUsed    int    `json:"global_used"`
	GlobalLimit   int    `json:"global_limit"`
	ActiveUsers   int    `json:"active_users"`
	UserUsed      int    `json:"user_used"`
	UserLimit     int    `json:"user_limit"`
	UserRemaining int    `json:"user_remaining"`
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func jobToResponse(j domain.Job) JobResponse {
	resp := JobResponse{
		JobID:     j.ID,
		Status:    string(j.Status),
		CreatedAt: j.CreatedAt,
	}
	if j.IsTerminal() {
		completedAt := j.CompletedAt
		resp.CompletedAt = &completedAt
	}

	switch j.Status {
	case domain.JobStatusCompleted:
		events := j.Events
		if events == nil {
			events = []domain.ExtractedEvent{}
		}
		resp.Result = &JobResult{Events: events, RawText: j.RawText}
	case domain.JobStatusFailed:
		resp.Error = j.Error
	}
	return resp
}
