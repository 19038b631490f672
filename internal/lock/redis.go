package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Only the ticket holder may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisBackend struct {
	client redis.UniversalClient
}

func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	ticket, err := randomTicket()
	if err != nil {
		return "", false, err
	}
	ok, err := b.client.SetNX(ctx, key, ticket, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("TryAcquire: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return ticket, true, nil
}

func (b *RedisBackend) Release(ctx context.Context, key, ticket string) error {
	n, err := releaseScript.Run(ctx, b.client, []string{key}, ticket).Int()
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
