package lock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/testutil"
)

func TestRedisBackend(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	backend := NewRedisBackend(client)

	runBackendContract(t, func(t *testing.T) Backend { return backend })

	t.Run("acquire sets ttl", func(t *testing.T) {
		key := "locks:test:" + uuid.NewString()
		_, ok, err := backend.TryAcquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ttl, err := client.PTTL(context.Background(), key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Second)
	})

	t.Run("service over redis", func(t *testing.T) {
		svc := NewService(backend, Config{TTL: time.Minute})
		walletID := uuid.New()

		err := svc.LockWalletID(context.Background(), walletID, func(ctx context.Context) error {
			n, err := client.Exists(ctx, "locks:wallet:"+walletID.String()).Result()
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
			return nil
		})
		require.NoError(t, err)

		n, err := client.Exists(context.Background(), "locks:wallet:"+walletID.String()).Result()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
