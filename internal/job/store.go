// Package job tracks asynchronous analysis jobs through their lifecycle.
package job

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/capture-api/internal/domain"
)

// ErrJobNotFound is returned when a job ID is unknown or was pruned.
var ErrJobNotFound = errors.New("job not found")

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store holds job records in memory. Each update replaces the whole record
// under the write lock, so readers never observe a partially updated job.
type Store struct {
	mutex  sync.RWMutex
	jobs   map[string]domain.Job
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		jobs:   make(map[string]domain.Job),
		logger: logger.With("component", "job_store"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a processing job for userID and returns its ID.
func (s *Store) Create(userID string) (string, error) {
	j, err := domain.NewJob(userID, s.now())
	if err != nil {
		return "", err
	}

	s.mutex.Lock()
	s.jobs[j.ID] = j
	s.mutex.Unlock()

	s.logger.Debug("job created", "job_id", j.ID, "user_id", userID)
	return j.ID, nil
}

// Complete moves a processing job to completed with events attached.
func (s *Store) Complete(jobID string, events []domain.ExtractedEvent, rawText string) error {
	return s.transition(jobID, func(j domain.Job) (domain.Job, error) {
		return j.Completed(events, rawText, s.now())
	})
}

// Fail moves a processing job to failed with errText attached.
func (s *Store) Fail(jobID string, errText string) error {
	return s.transition(jobID, func(j domain.Job) (domain.Job, error) {
		return j.Failed(errText, s.now())
	})
}

func (s *Store) transition(jobID string, next func(domain.Job) (domain.Job, error)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.jobs[jobID]
	if !ok {
		s.logger.Warn("update for unknown job ignored", "job_id", jobID)
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	updated, err := next(current)
	if err != nil {
		s.logger.Warn("update for finished job ignored",
			"job_id", jobID,
			"status", current.Status)
		return fmt.Errorf("job %s: %w", jobID, err)
	}

	s.jobs[jobID] = updated
	s.logger.Debug("job updated", "job_id", jobID, "status", updated.Status)
	return nil
}

// Get returns a copy of the job with the given ID.
func (s *Store) Get(jobID string) (domain.Job, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return j.Clone(), true
}

// Prune removes terminal jobs that finished before cutoff and returns how
// many were removed. Processing jobs are never pruned.
func (s *Store) Prune(cutoff time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if j.IsTerminal() && j.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.jobs)
}
