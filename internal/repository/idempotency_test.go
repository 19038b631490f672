package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/testutil"
)

func TestIdempotencyStore(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	got, err := store.Get(ctx, "account-1", "key-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	first := &IdempotencyCacheEntry{
		Key:          "key-1",
		Scope:        "account-1",
		RequestHash:  "hash-a",
		StatusCode:   200,
		ResponseBody: []byte(`{"success":true}`),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Set(ctx, first))

	second := *first
	second.RequestHash = "hash-b"
	require.NoError(t, store.Set(ctx, &second))

	got, err = store.Get(ctx, "account-1", "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash-a", got.RequestHash)
	assert.Equal(t, 200, got.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(got.ResponseBody))

	other, err := store.Get(ctx, "account-2", "key-1")
	require.NoError(t, err)
	assert.Nil(t, other)

	ttl, err := client.PTTL(ctx, "idempotency:account-1:key-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}
