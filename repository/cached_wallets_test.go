package repository

import (
	"context"
	"testing"
	"time"

	"wallet-trust-system/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// unreachableRedis points at a port nothing listens on so every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCachedWalletStore_FallsBackWhenRedisIsDown(t *testing.T) {
	inner := NewMemoryWalletStore()
	store := NewCachedWalletStore(inner, unreachableRedis(t), time.Minute, zap.NewNop())
	ctx := context.Background()

	w := &models.Wallet{Name: "Carol", PasswordHash: "h", Salt: "s"}
	require.NoError(t, store.Create(ctx, w))

	got, err := store.GetByName(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	byID, err := store.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol", byID.Name)

	_, err = store.GetByName(ctx, "dave")
	assert.ErrorIs(t, err, ErrNotFound)
}
