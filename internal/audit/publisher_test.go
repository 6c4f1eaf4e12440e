package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SyncEmit(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	err := pub.Emit(context.Background(), Event{
		UserID: "user-1",
		Action: ActionLoginSucceeded,
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionLoginSucceeded, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp is defaulted on emit")
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(16))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), Event{
			UserID: "user-1",
			Action: ActionBidAccepted,
		}))
	}
	pub.Close()

	events, err := store.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestDeviceLabel(t *testing.T) {
	t.Run("chrome on mac", func(t *testing.T) {
		label := DeviceLabel("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		assert.Contains(t, label, "Chrome")
		assert.Contains(t, label, " on ")
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "Unknown Device", DeviceLabel(""))
	})
}
