package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/phrazzld/capture-api/internal/events"
	"github.com/phrazzld/capture-api/internal/redact"
	"github.com/phrazzld/capture-api/internal/task"
	"github.com/phrazzld/capture-api/internal/vision"
)

// analysisTask analyzes one screenshot for one job. It owns the job's only
// state transition and reports the outcome through the job store and a
// job-finished event.
type analysisTask struct {
	jobID    string
	userID   string
	image    []byte
	pipeline *Pipeline
	logger   *slog.Logger
}

var _ task.Task = (*analysisTask)(nil)

func newAnalysisTask(jobID, userID string, image []byte, p *Pipeline) *analysisTask {
	return &analysisTask{
		jobID:    jobID,
		userID:   userID,
		image:    image,
		pipeline: p,
		logger: p.logger.With(
			"task_type", task.TaskTypeScreenshotAnalysis,
			"job_id", jobID,
			"user_id", userID,
		),
	}
}

// ID returns the job ID.
func (t *analysisTask) ID() string {
	return t.jobID
}

// Type returns task.TaskTypeScreenshotAnalysis.
func (t *analysisTask) Type() string {
	return task.TaskTypeScreenshotAnalysis
}

// Execute runs the analysis. Analyzer failures are recorded on the job and do
// not fail the task; only a job store error does.
func (t *analysisTask) Execute(ctx context.Context) error {
	jobs := t.pipeline.jobs

	result, err := t.runAnalyzer(ctx)
	if err != nil {
		errText := redact.Error(err)
		t.logger.WarnContext(ctx, "analysis failed", "error", errText)
		if err := jobs.Fail(t.jobID, errText); err != nil {
			return fmt.Errorf("failed to record analysis failure: %w", err)
		}
	} else {
		if err := jobs.Complete(t.jobID, result.Events, result.RawText); err != nil {
			return fmt.Errorf("failed to record analysis result: %w", err)
		}
		t.logger.InfoContext(ctx, "analysis completed", "event_count", len(result.Events))
	}

	t.image = nil
	t.emitFinished(ctx)
	return nil
}

// runAnalyzer converts an analyzer panic into an error so the job still
// reaches a terminal status and the user is notified.
func (t *analysisTask) runAnalyzer(ctx context.Context) (result *vision.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.ErrorContext(ctx, "analyzer panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("analyzer panicked: %v", r)
		}
	}()
	return t.pipeline.analyze(ctx, t.image)
}

func (t *analysisTask) emitFinished(ctx context.Context) {
	finished, ok := t.pipeline.jobs.Get(t.jobID)
	if !ok {
		t.logger.WarnContext(ctx, "finished job disappeared before notification")
		return
	}

	if err := t.pipeline.emitter.EmitEvent(ctx, events.NewJobFinishedEvent(finished)); err != nil {
		t.logger.WarnContext(ctx, "job finished event handling failed", "error", err)
	}
}
