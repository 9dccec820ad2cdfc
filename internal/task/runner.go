package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrRunnerStarted is returned when Start is called twice.
var ErrRunnerStarted = errors.New("task runner already started")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	queue   *TaskQueue
	pool    *WorkerPool
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)

	return &TaskRunner{
		queue:  queue,
		pool:   pool,
		logger: logger,
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit queues task without blocking. It returns ErrQueueFull when the
// buffer is exhausted and ErrQueueClosed after Stop.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	return r.queue.Enqueue(task)
}

// Start begins processing tasks, including any submitted before Start.
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRunnerStarted
	}
	r.started = true
	r.pool.Start()
	return nil
}

// Stop refuses new tasks and blocks until every queued task has run.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	r.queue.Close()
	if started {
		r.pool.Wait()
	}
}

// Pending returns the number of tasks waiting for a worker.
func (r *TaskRunner) Pending() int {
	return r.queue.Len()
}
