package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRunner_SubmitAndRun(t *testing.T) {
	t.Parallel()

	runner := NewTaskRunner(DefaultTaskRunnerConfig(), setupTestLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	done := make(chan struct{})
	require.NoError(t, runner.Submit(context.Background(), NewMockTask(func(ctx context.Context) error {
		close(done)
		return nil
	})))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestTaskRunner_QueueFull(t *testing.T) {
	t.Parallel()

	// Not started, so nothing drains the queue.
	runner := NewTaskRunner(TaskRunnerConfig{WorkerCount: 1, QueueSize: 1}, setupTestLogger())

	require.NoError(t, runner.Submit(context.Background(), NewMockTask(nil)))
	err := runner.Submit(context.Background(), NewMockTask(nil))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, runner.Pending())
}

func TestTaskRunner_StopDrainsAcceptedTasks(t *testing.T) {
	t.Parallel()

	runner := NewTaskRunner(TaskRunnerConfig{WorkerCount: 2, QueueSize: 20}, setupTestLogger())

	var executed int32
	for i := 0; i < 20; i++ {
		require.NoError(t, runner.Submit(context.Background(), NewMockTask(func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&executed, 1)
			return nil
		})))
	}

	require.NoError(t, runner.Start())
	runner.Stop()

	assert.Equal(t, int32(20), atomic.LoadInt32(&executed), "every accepted task runs before Stop returns")
	assert.ErrorIs(t, runner.Submit(context.Background(), NewMockTask(nil)), ErrQueueClosed)
}

func TestTaskRunner_StartTwice(t *testing.T) {
	t.Parallel()

	runner := NewTaskRunner(DefaultTaskRunnerConfig(), setupTestLogger())
	require.NoError(t, runner.Start())
	assert.ErrorIs(t, runner.Start(), ErrRunnerStarted)
	runner.Stop()
	runner.Stop() // idempotent
}

func TestTaskRunner_ExecuteContextIsDetached(t *testing.T) {
	t.Parallel()

	runner := NewTaskRunner(DefaultTaskRunnerConfig(), setupTestLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	reqCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	result := make(chan error, 1)
	require.NoError(t, runner.Submit(reqCtx, NewMockTask(func(ctx context.Context) error {
		close(started)
		time.Sleep(10 * time.Millisecond)
		result <- ctx.Err()
		return nil
	})))

	<-started
	cancel()
	assert.NoError(t, <-result, "cancelling the submitting request must not cancel the task")
}
