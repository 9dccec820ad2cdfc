package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/capture-api/internal/api"
	"github.com/phrazzld/capture-api/internal/api/middleware"
	"github.com/phrazzld/capture-api/internal/config"
	"github.com/phrazzld/capture-api/internal/device"
	"github.com/phrazzld/capture-api/internal/events"
	"github.com/phrazzld/capture-api/internal/job"
	"github.com/phrazzld/capture-api/internal/pipeline"
	"github.com/phrazzld/capture-api/internal/platform/gemini"
	"github.com/phrazzld/capture-api/internal/platform/google"
	"github.com/phrazzld/capture-api/internal/push"
	"github.com/phrazzld/capture-api/internal/quota"
	"github.com/phrazzld/capture-api/internal/task"
	"github.com/phrazzld/capture-api/internal/vision"
)

// externalServices are the collaborators that reach outside the process.
// newApplication builds the real ones; tests supply fakes.
type externalServices struct {
	analyzer   vision.Analyzer
	verifier   middleware.IdentityVerifier
	calendar   api.CalendarWriter
	dispatcher *push.Dispatcher
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	quotaTracker *quota.Tracker
	devices      *device.Registry
	jobs         *job.Store
	sweeper      *job.Sweeper
	dispatcher   *push.Dispatcher
	emitter      *events.InMemoryEventEmitter
	taskRunner   *task.TaskRunner
	pipeline     *pipeline.Pipeline

	verifier middleware.IdentityVerifier
	calendar api.CalendarWriter
}

// newApplication creates the production application: a Gemini analyzer,
// Google identity and calendar clients, and push credentials from config.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	analyzer, err := gemini.NewAnalyzer(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vision analyzer: %w", err)
	}
	logger.Info("Vision analyzer initialized", "model", cfg.LLM.ModelName)

	dispatcher := push.NewDispatcher(push.LoadCredentials(cfg.Push), cfg.Push, logger)

	return assembleApplication(cfg, logger, externalServices{
		analyzer:   analyzer,
		verifier:   google.NewIdentityVerifier(logger),
		calendar:   google.NewCalendarWriter(logger),
		dispatcher: dispatcher,
	})
}

// assembleApplication wires the in-process components around ext and starts
// the background workers.
func assembleApplication(cfg *config.Config, logger *slog.Logger, ext externalServices) (*application, error) {
	app := &application{
		config:     cfg,
		logger:     logger,
		dispatcher: ext.dispatcher,
		verifier:   ext.verifier,
		calendar:   ext.calendar,
	}

	app.quotaTracker = quota.NewTracker(quota.Limits{
		GlobalDaily:  cfg.Quota.GlobalDaily,
		PerUserDaily: cfg.Quota.PerUserDaily,
	})
	app.devices = device.NewRegistry(logger)
	app.jobs = job.NewStore(logger)

	if cfg.Job.RetentionMinutes > 0 {
		app.sweeper = job.NewSweeper(app.jobs, job.SweeperConfig{
			Retention: time.Duration(cfg.Job.RetentionMinutes) * time.Minute,
			Interval:  time.Duration(cfg.Job.SweepIntervalMinutes) * time.Minute,
		}, logger)
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	notifier, err := pipeline.NewPushNotifier(
		app.devices,
		app.dispatcher,
		time.Duration(cfg.Push.TimeoutSeconds)*time.Second,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create push notifier: %w", err)
	}
	app.emitter.RegisterHandler(notifier)

	app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, logger)

	app.pipeline, err = pipeline.New(pipeline.Config{
		MaxImageBytes:  cfg.Server.MaxImageBytes,
		AnalyzeTimeout: time.Duration(cfg.Server.AnalyzeTimeoutSeconds) * time.Second,
	}, pipeline.Dependencies{
		Quota:    app.quotaTracker,
		Jobs:     app.jobs,
		Runner:   app.taskRunner,
		Analyzer: ext.analyzer,
		Emitter:  app.emitter,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis pipeline: %w", err)
	}

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}
	if app.sweeper != nil {
		app.sweeper.Start()
	}

	logger.Info("Application initialized successfully",
		"workers", cfg.Task.WorkerCount,
		"queue_size", cfg.Task.QueueSize,
		"push_configured", app.dispatcher.Configured())
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops background work. Queued analyses finish first so their
// users still get a notification.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	app.logger.Info("Application shutdown completed")
}
