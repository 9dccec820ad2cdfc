package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter delivers job-finished events to the handlers
// registered at startup, one after another on the worker that finished the
// job. Handlers run in registration order and see the same event value.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "job_event_emitter"),
	}
}

// RegisterHandler subscribes handler to every finished job.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	count := len(e.handlers)
	e.mu.Unlock()

	e.logger.Debug("job event handler registered", "handler_count", count)
}

// EmitEvent hands event to each handler. A failing or panicking handler is
// logged and skipped so the rest still see the job; the first failure is
// returned once all have run.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *JobFinishedEvent) error {
	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.handlers...)
	e.mu.RUnlock()

	log := e.logger.With(
		"event_id", event.ID,
		"event_type", event.Type,
		"job_id", event.Job.ID,
		"job_status", event.Job.Status)

	if len(handlers) == 0 {
		log.WarnContext(ctx, "job finished with nobody listening")
		return nil
	}
	log.DebugContext(ctx, "dispatching job finished event", "handler_count", len(handlers))

	var firstErr error
	for i, handler := range handlers {
		if err := dispatch(ctx, handler, event); err != nil {
			log.ErrorContext(ctx, "job event handler failed",
				"error", err,
				"handler_index", i)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func dispatch(ctx context.Context, handler EventHandler, event *JobFinishedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}
