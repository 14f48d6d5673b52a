package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harpoon/internal/queue"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan queue.Job, 1)
	errCh := make(chan error, 1)

	go func() {
		job, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- job
	}()

	require.NoError(t, q.Enqueue(context.Background(), queue.Job{ID: "job-1"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		assert.Equal(t, "job-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, q.Enqueue(context.Background(), queue.Job{ID: "fill"}))
	assert.Equal(t, 1, q.Len())

	full, cancelFull := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelFull()
	err = q.Enqueue(full, queue.Job{ID: "overflow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseDrainsThenReportsClosed(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), queue.Job{ID: "a"}))
	q.Close()
	q.Close()

	err := q.Enqueue(context.Background(), queue.Job{ID: "b"})
	require.True(t, errors.Is(err, queue.ErrClosed))

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", job.ID)

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, queue.ErrClosed)
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, queue.StateQueued.Terminal())
	assert.False(t, queue.StateRunning.Terminal())
	assert.True(t, queue.StateSucceeded.Terminal())
	assert.True(t, queue.StateFailed.Terminal())
}
