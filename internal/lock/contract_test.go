package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runBackendContract checks the behaviour every Backend must share.
func runBackendContract(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("acquire then release", func(t *testing.T) {
		b := newBackend(t)
		key := "contract:" + uuid.NewString()

		ticket, ok, err := b.TryAcquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotEmpty(t, ticket)

		require.NoError(t, b.Release(context.Background(), key, ticket))

		_, ok, err = b.TryAcquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("held key cannot be acquired", func(t *testing.T) {
		b := newBackend(t)
		key := "contract:" + uuid.NewString()

		_, ok, err := b.TryAcquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = b.TryAcquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong ticket cannot release", func(t *testing.T) {
		b := newBackend(t)
		key := "contract:" + uuid.NewString()

		_, ok, err := b.TryAcquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		err = b.Release(context.Background(), key, "not-the-ticket")
		require.ErrorIs(t, err, ErrNotHeld)

		_, ok, err = b.TryAcquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired key can be taken over", func(t *testing.T) {
		b := newBackend(t)
		key := "contract:" + uuid.NewString()

		first, ok, err := b.TryAcquire(context.Background(), key, 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		require.Eventually(t, func() bool {
			_, ok, err := b.TryAcquire(context.Background(), key, time.Minute)
			return err == nil && ok
		}, 3*time.Second, 50*time.Millisecond)

		// the stale holder must not free the new owner's key
		require.ErrorIs(t, b.Release(context.Background(), key, first), ErrNotHeld)
	})

	t.Run("only one concurrent winner", func(t *testing.T) {
		b := newBackend(t)
		key := "contract:" + uuid.NewString()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := b.TryAcquire(context.Background(), key, time.Minute)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
