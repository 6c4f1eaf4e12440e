package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sayarat/internal/ratelimit/store/record"
)

func TestRunOnce_RemovesExpiredRecords(t *testing.T) {
	store := record.NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Incr(ctx, "stale", time.Minute, time.Minute, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	_, err = store.Incr(ctx, "live", time.Minute, time.Hour, time.Now())
	require.NoError(t, err)

	worker := New(store)
	removed, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	worker := New(record.NewInMemoryStore(), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- worker.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestStart_SweepsOnInterval(t *testing.T) {
	store := record.NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Incr(ctx, "stale", time.Minute, time.Minute, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)

	worker := New(store, WithInterval(10*time.Millisecond))

	runCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = worker.Start(runCtx)

	assert.Zero(t, store.Len())
}
