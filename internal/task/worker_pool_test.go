package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskQueue implements TaskQueueReader for testing
type mockTaskQueue struct {
	ch chan Task
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{
		ch: make(chan Task, 10),
	}
}

func (m *mockTaskQueue) GetChannel() <-chan Task {
	return m.ch
}

func TestNewWorkerPool(t *testing.T) {
	logger := setupTestLogger()
	taskQueue := newMockTaskQueue()

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 5}, logger)
	assert.Equal(t, 5, pool.workerCount)
	assert.Nil(t, pool.errorHandler)

	// Invalid worker counts default to 1
	pool = NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 0}, logger)
	assert.Equal(t, 1, pool.workerCount)

	pool = NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: -5}, logger)
	assert.Equal(t, 1, pool.workerCount)
}

func TestWorkerPool_DrainsQueueBeforeExit(t *testing.T) {
	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())

	var executed int32
	for i := 0; i < 10; i++ {
		taskQueue.ch <- NewMockTask(func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			return nil
		})
	}
	close(taskQueue.ch)

	pool.Start()
	pool.Wait()

	assert.Equal(t, int32(10), atomic.LoadInt32(&executed))
}

func TestWorkerPool_ErrorHandler(t *testing.T) {
	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	var (
		mu     sync.Mutex
		failed []string
	)
	pool.SetErrorHandler(func(task Task, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, err.Error())
	})

	taskQueue.ch <- NewMockTask(func(ctx context.Context) error { return errors.New("boom") })
	taskQueue.ch <- NewMockTask(func(ctx context.Context) error { return nil })
	close(taskQueue.ch)

	pool.Start()
	pool.Wait()

	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0])
}

func TestWorkerPool_RecoversFromPanic(t *testing.T) {
	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	var handled int32
	pool.SetErrorHandler(func(task Task, err error) {
		atomic.AddInt32(&handled, 1)
		assert.Contains(t, err.Error(), "panicked")
	})

	var ranAfter int32
	taskQueue.ch <- NewMockTask(func(ctx context.Context) error { panic("bad task") })
	taskQueue.ch <- NewMockTask(func(ctx context.Context) error {
		atomic.AddInt32(&ranAfter, 1)
		return nil
	})
	close(taskQueue.ch)

	pool.Start()
	pool.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ranAfter), "worker must survive a panicking task")
}
