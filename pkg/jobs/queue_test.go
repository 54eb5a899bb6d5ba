package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int64
	handler := func(ctx context.Context, job Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}
	q := NewQueue("test", handler, QueueConfig{Workers: 2, BufferSize: 4})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "noop"}))
	require.NoError(t, q.Enqueue(Job{ID: "job-2", Type: "noop"}))

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&processed) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{ID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	q.Stop()

	// Buffer space is still available, but a stopped queue must refuse
	// the job rather than strand it in the channel.
	for i := 0; i < 8; i++ {
		err := q.Enqueue(Job{ID: "job-after-stop"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stopped")
	}
}

func TestQueueSetsEnqueuedTimestamp(t *testing.T) {
	received := make(chan Job, 1)
	handler := func(ctx context.Context, job Job) error {
		received <- job
		return nil
	}
	q := NewQueue("test", handler, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case job := <-received:
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}
}
