package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type IdempotencyCacheEntry struct {
	Key          string    `json:"key"`
	Scope        string    `json:"scope"`
	RequestHash  string    `json:"request_hash"`
	StatusCode   int       `json:"status_code"`
	ResponseBody []byte    `json:"response_body"`
	CreatedAt    time.Time `json:"created_at"`
}

// IdempotencyStore keeps replayable responses in Redis. Entries expire on
// their own after ttl.
type IdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(scope, key string) string {
	return "idempotency:" + scope + ":" + key
}

// Get returns nil, nil when nothing is cached for the key.
func (s *IdempotencyStore) Get(ctx context.Context, scope, key string) (*IdempotencyCacheEntry, error) {
	raw, err := s.client.Get(ctx, idempotencyKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var e IdempotencyCacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &e, nil
}

// Set stores the entry unless one already exists for the same key.
func (s *IdempotencyStore) Set(ctx context.Context, entry *IdempotencyCacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}
	if err := s.client.SetNX(ctx, idempotencyKey(entry.Scope, entry.Key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}
