package task

import (
	"context"

	"github.com/google/uuid"
)

// MockTask is a simple implementation of the Task interface for testing
type MockTask struct {
	TaskID    string
	TaskType  string
	ExecuteFn func(ctx context.Context) error
}

// NewMockTask creates a MockTask with a random ID that runs fn.
func NewMockTask(fn func(ctx context.Context) error) *MockTask {
	if fn == nil {
		fn = func(ctx context.Context) error { return nil }
	}
	return &MockTask{
		TaskID:    uuid.NewString(),
		TaskType:  "mock_task",
		ExecuteFn: fn,
	}
}

// ID returns the task's unique identifier
func (t *MockTask) ID() string {
	return t.TaskID
}

// Type returns the task type identifier
func (t *MockTask) Type() string {
	return t.TaskType
}

// Execute runs the task logic
func (t *MockTask) Execute(ctx context.Context) error {
	return t.ExecuteFn(ctx)
}
