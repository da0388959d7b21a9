package workqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsSubmittedJobs(t *testing.T) {
	q := New("test", WithWorkers(2), WithSize(8))
	q.Start()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, q.Submit(func(ctx context.Context) { ran.Add(1) }))
	}

	q.Stop()
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(5), q.Executed())
	assert.Equal(t, int64(0), q.Dropped())
}

func TestQueue_SubmitDoesNotBlockWhenFull(t *testing.T) {
	var dropHook atomic.Int32
	q := New("full", WithSize(1), WithDropHook(func(string) { dropHook.Add(1) }))
	// not started: nothing drains the buffer

	assert.True(t, q.Submit(func(context.Context) {}))

	done := make(chan bool, 1)
	go func() { done <- q.Submit(func(context.Context) {}) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	assert.Equal(t, int64(1), q.Dropped())
	assert.Equal(t, int32(1), dropHook.Load())
	assert.Equal(t, 1, q.Pending())
}

func TestQueue_SubmitAfterStopIsDropped(t *testing.T) {
	q := New("stopped")
	q.Start()
	q.Stop()

	assert.False(t, q.Submit(func(context.Context) {}))
	assert.Equal(t, int64(1), q.Dropped())

	// second stop is harmless
	q.Stop()
}

func TestQueue_PanickingJobDoesNotKillWorker(t *testing.T) {
	q := New("panics", WithWorkers(1))
	q.Start()

	var ran atomic.Bool
	q.Submit(func(context.Context) { panic("boom") })
	q.Submit(func(context.Context) { ran.Store(true) })
	q.Stop()

	assert.True(t, ran.Load())
	assert.Equal(t, int64(2), q.Executed())
}

func TestQueue_JobGetsTimeoutContext(t *testing.T) {
	q := New("timeout", WithJobTimeout(20*time.Millisecond))
	q.Start()

	errCh := make(chan error, 1)
	q.Submit(func(ctx context.Context) {
		<-ctx.Done()
		errCh <- ctx.Err()
	})

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job context never expired")
	}
	q.Stop()
}
