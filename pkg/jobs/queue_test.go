package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsFuncPayloads(t *testing.T) {
	q := NewQueue("test", RunFunc, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	done := make(chan struct{})
	require.NoError(t, q.Enqueue(Job{ID: "1", Payload: Func(func(ctx context.Context) error {
		close(done)
		return nil
	})}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}

func TestQueueDoesNotRetryByDefault(t *testing.T) {
	var runs int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("boom")
	}, QueueConfig{RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	time.Sleep(50 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	q := NewQueue("test", RunFunc, QueueConfig{})
	err := q.Enqueue(Job{ID: "1"})
	require.ErrorIs(t, err, ErrNotRunning)

	q.Start(context.Background())
	q.Stop()
	err = q.Enqueue(Job{ID: "2"})
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestRunFuncRejectsForeignPayload(t *testing.T) {
	err := RunFunc(context.Background(), Job{ID: "x", Payload: "nope"})
	require.Error(t, err)
}
