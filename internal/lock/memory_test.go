package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

func TestMemoryBackend_Contract(t *testing.T) {
	runBackendContract(t, func(t *testing.T) Backend { return NewMemoryBackend() })
}

func TestLockWalletID_RunsAndReleases(t *testing.T) {
	backend := NewMemoryBackend()
	svc := NewService(backend, Config{TTL: time.Minute})
	walletID := uuid.New()

	called := false
	err := svc.LockWalletID(context.Background(), walletID, func(ctx context.Context) error {
		called = true
		require.NoError(t, CheckHeld(ctx))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	_, ok, err := backend.TryAcquire(context.Background(), walletKey(walletID), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock should be released after fn returns")
}

func TestLockWalletID_ReturnsFnError(t *testing.T) {
	svc := NewService(NewMemoryBackend(), Config{})
	boom := errors.New("boom")

	err := svc.LockWalletID(context.Background(), uuid.New(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestLockWalletID_AcquireTimeout(t *testing.T) {
	backend := NewMemoryBackend()
	svc := NewService(backend, Config{
		TTL:            time.Minute,
		RetryDelay:     10 * time.Millisecond,
		AcquireTimeout: 50 * time.Millisecond,
	})
	walletID := uuid.New()

	_, ok, err := backend.TryAcquire(context.Background(), walletKey(walletID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	err = svc.LockWalletID(context.Background(), walletID, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, domain.ErrLockAcquireTimeout)
	assert.False(t, called)
}

func TestLockWalletID_ExpirySignalsCriticalSection(t *testing.T) {
	svc := NewService(NewMemoryBackend(), Config{TTL: 30 * time.Millisecond})

	err := svc.LockWalletID(context.Background(), uuid.New(), func(ctx context.Context) error {
		<-ctx.Done()
		return CheckHeld(ctx)
	})
	require.ErrorIs(t, err, ErrLockExpired)
	require.ErrorIs(t, err, domain.ErrResourceExpiredLock)
}

func TestLockWalletID_CancelledReadReportsExpiry(t *testing.T) {
	svc := NewService(NewMemoryBackend(), Config{TTL: 20 * time.Millisecond})

	err := svc.LockWalletID(context.Background(), uuid.New(), func(ctx context.Context) error {
		<-ctx.Done()
		return fmt.Errorf("price read: %w", ctx.Err())
	})
	require.ErrorIs(t, err, domain.ErrResourceExpiredLock)
}

func TestLockWalletID_CallerCancelIsNotExpiry(t *testing.T) {
	svc := NewService(NewMemoryBackend(), Config{TTL: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	err := svc.LockWalletID(ctx, uuid.New(), func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrResourceExpiredLock)
}

func TestLockWalletID_SerializesSameWallet(t *testing.T) {
	svc := NewService(NewMemoryBackend(), Config{
		TTL:            time.Minute,
		RetryDelay:     time.Millisecond,
		AcquireTimeout: 5 * time.Second,
	})
	walletID := uuid.New()

	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.LockWalletID(context.Background(), walletID, func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestCheckHeld_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CheckHeld(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrResourceExpiredLock)
}
