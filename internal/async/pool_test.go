package async

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerPool_ProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uuid.UUID]bool)
	done := make(chan struct{}, 8)

	pool := NewWorkerPool(func(_ context.Context, task Task) error {
		mu.Lock()
		seen[task.JobID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, poolLogger(), WithWorkers(2), WithQueueSize(8))
	defer pool.Shutdown(context.Background())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, pool.Enqueue(context.Background(), Task{JobID: id, SubmittedAt: time.Now()}))
	}
	for range ids {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task never processed")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.True(t, seen[id])
	}
}

func TestWorkerPool_RejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewWorkerPool(func(context.Context, Task) error {
		<-block
		return nil
	}, poolLogger(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(block)
		pool.Shutdown(context.Background())
	}()

	// first task occupies the worker, second fills the buffer
	require.NoError(t, pool.Enqueue(context.Background(), Task{JobID: uuid.New()}))
	// give the worker a moment to pick up the first task
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Enqueue(context.Background(), Task{JobID: uuid.New()}))

	err := pool.Enqueue(context.Background(), Task{JobID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_FULL")
}

func TestWorkerPool_ShutdownStopsIntake(t *testing.T) {
	pool := NewWorkerPool(func(context.Context, Task) error { return nil }, poolLogger())
	pool.Shutdown(context.Background())

	err := pool.Enqueue(context.Background(), Task{JobID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_CLOSED")
}

func TestWorkerPool_ShutdownWaitsForInflight(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan struct{})
	pool := NewWorkerPool(func(context.Context, Task) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil
	}, poolLogger(), WithWorkers(1))

	require.NoError(t, pool.Enqueue(context.Background(), Task{JobID: uuid.New()}))
	<-started
	pool.Shutdown(context.Background())

	select {
	case <-finished:
	default:
		t.Fatal("shutdown returned before the in-flight task finished")
	}
}
