package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/events"
	"github.com/phrazzld/capture-api/internal/task"
	"github.com/phrazzld/capture-api/internal/vision"
)

// Errors returned before a request is accepted.
var (
	ErrImageTooLarge  = errors.New("image exceeds maximum size")
	ErrEmptyImage     = errors.New("image cannot be empty")
	ErrBusy           = errors.New("analysis queue is full, try again later")
	ErrAnalysisFailed = errors.New("screenshot analysis failed")
)

// QuotaGate admits or rejects a request for a user. *quota.Tracker
// implements it.
type QuotaGate interface {
	Acquire(userID string) error
}

// JobRepository is the subset of *job.Store the pipeline uses.
type JobRepository interface {
	Create(userID string) (string, error)
	Complete(jobID string, events []domain.ExtractedEvent, rawText string) error
	Fail(jobID string, errText string) error
	Get(jobID string) (domain.Job, bool)
}

// TaskSubmitter schedules background work. *task.TaskRunner implements it.
type TaskSubmitter interface {
	Submit(ctx context.Context, t task.Task) error
}

// Config bounds the work accepted by the pipeline.
type Config struct {
	// MaxImageBytes is the largest decoded image accepted.
	MaxImageBytes int

	// AnalyzeTimeout bounds a single analyzer call.
	AnalyzeTimeout time.Duration
}

// Dependencies are the collaborators of a Pipeline. All are required.
type Dependencies struct {
	Quota    QuotaGate
	Jobs     JobRepository
	Runner   TaskSubmitter
	Analyzer vision.Analyzer
	Emitter  events.EventEmitter
}

// Pipeline accepts analysis requests.
type Pipeline struct {
	config   Config
	quota    QuotaGate
	jobs     JobRepository
	runner   TaskSubmitter
	analyzer vision.Analyzer
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// New creates a Pipeline. It returns an error if any dependency is nil.
func New(cfg Config, deps Dependencies, logger *slog.Logger) (*Pipeline, error) {
	switch {
	case deps.Quota == nil:
		return nil, errors.New("quota gate cannot be nil")
	case deps.Jobs == nil:
		return nil, errors.New("job repository cannot be nil")
	case deps.Runner == nil:
		return nil, errors.New("task submitter cannot be nil")
	case deps.Analyzer == nil:
		return nil, errors.New("analyzer cannot be nil")
	case deps.Emitter == nil:
		return nil, errors.New("event emitter cannot be nil")
	}
	if cfg.MaxImageBytes <= 0 {
		return nil, fmt.Errorf("max image bytes must be positive, got %d", cfg.MaxImageBytes)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		config:   cfg,
		quota:    deps.Quota,
		jobs:     deps.Jobs,
		runner:   deps.Runner,
		analyzer: deps.Analyzer,
		emitter:  deps.Emitter,
		logger:   logger.With("component", "pipeline"),
	}, nil
}

// SubmitAsync admits image for background analysis and returns the new job
// ID. Quota rejections are returned as *quota.LimitError and create no job.
func (p *Pipeline) SubmitAsync(ctx context.Context, userID string, image []byte) (string, error) {
	if err := p.admit(userID, image); err != nil {
		return "", err
	}

	jobID, err := p.jobs.Create(userID)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	analysis := newAnalysisTask(jobID, userID, image, p)
	if err := p.runner.Submit(ctx, analysis); err != nil {
		p.logger.WarnContext(ctx, "analysis task rejected by runner",
			"job_id", jobID,
			"user_id", userID,
			"error", err)
		if failErr := p.jobs.Fail(jobID, "server busy: "+err.Error()); failErr != nil {
			p.logger.ErrorContext(ctx, "failed to mark rejected job as failed",
				"job_id", jobID,
				"error", failErr)
		}
		return "", fmt.Errorf("%w: %v", ErrBusy, err)
	}

	p.logger.InfoContext(ctx, "analysis job accepted",
		"job_id", jobID,
		"user_id", userID,
		"image_bytes", len(image))
	return jobID, nil
}

// AnalyzeSync analyzes image while the caller waits.
func (p *Pipeline) AnalyzeSync(ctx context.Context, userID string, image []byte) (*vision.Result, error) {
	if err := p.admit(userID, image); err != nil {
		return nil, err
	}

	result, err := p.analyze(ctx, image)
	if err != nil {
		p.logger.ErrorContext(ctx, "synchronous analysis failed",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return result, nil
}

// Status returns the job with the given ID.
func (p *Pipeline) Status(jobID string) (domain.Job, bool) {
	return p.jobs.Get(jobID)
}

// admit applies the size bounds, then the quota. Oversized requests never
// consume quota.
func (p *Pipeline) admit(userID string, image []byte) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	if len(image) > p.config.MaxImageBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(image), p.config.MaxImageBytes)
	}
	return p.quota.Acquire(userID)
}

func (p *Pipeline) analyze(ctx context.Context, image []byte) (*vision.Result, error) {
	if p.config.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.AnalyzeTimeout)
		defer cancel()
	}

	result, err := p.analyzer.Analyze(ctx, image)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &vision.Result{Events: []domain.ExtractedEvent{}}, nil
	}
	return result, nil
}
