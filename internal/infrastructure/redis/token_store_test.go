package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satoakira/go-event-management/internal/domain/user"
)

func TestTokenStore(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	store := NewTokenStore(client, time.Minute)

	t.Run("発行したトークンを解決できる", func(t *testing.T) {
		token, err := store.Issue(ctx, "user-1")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		defer store.Revoke(ctx, token)

		userID, err := store.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	})

	t.Run("不明なトークンはエラーになる", func(t *testing.T) {
		_, err := store.Resolve(ctx, "unknown-token")
		assert.ErrorIs(t, err, user.ErrInvalidToken)
	})

	t.Run("失効後は解決できない", func(t *testing.T) {
		token, err := store.Issue(ctx, "user-2")
		require.NoError(t, err)

		err = store.Revoke(ctx, token)
		require.NoError(t, err)

		_, err = store.Resolve(ctx, token)
		assert.ErrorIs(t, err, user.ErrInvalidToken)
	})
}
