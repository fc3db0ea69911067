package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotCache(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	cache := NewSlotCache(client)

	t.Run("保存した空き枠数を取得できる", func(t *testing.T) {
		eventID := "cache-test-event-1"
		defer cache.Invalidate(ctx, eventID)

		err := cache.SetAvailableSlots(ctx, eventID, 42, time.Minute)
		require.NoError(t, err)

		count, err := cache.GetAvailableSlots(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, 42, count)
	})

	t.Run("存在しないキーはキャッシュミスになる", func(t *testing.T) {
		_, err := cache.GetAvailableSlots(ctx, "cache-test-missing")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("無効化後はキャッシュミスになる", func(t *testing.T) {
		eventID := "cache-test-event-2"

		err := cache.SetAvailableSlots(ctx, eventID, 10, time.Minute)
		require.NoError(t, err)

		err = cache.Invalidate(ctx, eventID)
		require.NoError(t, err)

		_, err = cache.GetAvailableSlots(ctx, eventID)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}
