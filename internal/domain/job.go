package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of an asynchronous analysis job.
type JobStatus string

// Possible job status values. Completed and failed are terminal.
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Common validation errors for Job
var (
	ErrEmptyJobUserID = fmt.Errorf("%w: job user ID cannot be empty", ErrValidation)
	ErrJobFinalized   = errors.New("job already reached a terminal status")
)

// Job is a unit of asynchronous screenshot analysis. Exactly one of Events
// and Error is meaningful, chosen by Status.
type Job struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Status      JobStatus        `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Events      []ExtractedEvent `json:"events,omitempty"`
	RawText     string           `json:"raw_text,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// NewJob creates a processing job for userID with a fresh random identifier.
func NewJob(userID string, now time.Time) (Job, error) {
	if userID == "" {
		return Job{}, ErrEmptyJobUserID
	}

	return Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    JobStatusProcessing,
		CreatedAt: now.UTC(),
	}, nil
}

// IsTerminal reports whether the job has finished.
func (j Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Completed returns a copy of j transitioned to completed with events attached.
// A nil events slice is stored as empty so "completed with no events" is
// distinguishable on the wire.
func (j Job) Completed(events []ExtractedEvent, rawText string, now time.Time) (Job, error) {
	if j.IsTerminal() {
		return j, ErrJobFinalized
	}

	next := j
	next.Status = JobStatusCompleted
	next.Events = append(make([]ExtractedEvent, 0, len(events)), events...)
	next.RawText = rawText
	next.Error = ""
	next.CompletedAt = now.UTC()
	return next, nil
}

// Failed returns a copy of j transitioned to failed with errText attached.
func (j Job) Failed(errText string, now time.Time) (Job, error) {
	if j.IsTerminal() {
		return j, ErrJobFinalized
	}

	next := j
	next.Status = JobStatusFailed
	next.Events = nil
	next.Error = errText
	next.CompletedAt = now.UTC()
	return next, nil
}

// Clone returns a copy of j that shares no slices with it.
func (j Job) Clone() Job {
	c := j
	if j.Events != nil {
		c.Events = append(make([]ExtractedEvent, 0, len(j.Events)), j.Events...)
	}
	return c
}
