package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/capture-api/internal/domain"
)

// Event types emitted when a job reaches a terminal status.
const (
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"
)

// JobFinishedEvent reports that a job has reached a terminal status.
type JobFinishedEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is TypeJobCompleted or TypeJobFailed
	Type string `json:"type"`

	// Job is a snapshot of the job record at the time it finished
	Job domain.Job `json:"job"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewJobFinishedEvent creates an event for a terminal job. The type is
// derived from the job status.
func NewJobFinishedEvent(job domain.Job) *JobFinishedEvent {
	eventType := TypeJobCompleted
	if job.Status == domain.JobStatusFailed {
		eventType = TypeJobFailed
	}
	return &JobFinishedEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Job:       job.Clone(),
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler reacts to a finished job, e.g. by notifying the job's owner.
// The job has already been stored; a handler error does not change it.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *JobFinishedEvent) error
}

// EventEmitter is what the analysis task uses to announce a finished job.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *JobFinishedEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *JobFinishedEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *JobFinishedEvent) error {
	return f(ctx, event)
}
