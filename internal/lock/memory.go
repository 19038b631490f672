package lock

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"
)

// MemoryBackend keeps locks in process memory. It is only safe when a single
// process handles every send.
type MemoryBackend struct {
	mu         sync.Mutex
	held       map[string]heldKey
	randReader io.Reader
	now        func() time.Time
}

type heldKey struct {
	ticket    string
	expiresAt time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		held:       make(map[string]heldKey),
		randReader: rand.Reader,
		now:        time.Now,
	}
}

func (b *MemoryBackend) TryAcquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if h, ok := b.held[key]; ok && now.Before(h.expiresAt) {
		return "", false, nil
	}

	ticket, err := newTicket(b.randReader)
	if err != nil {
		return "", false, err
	}
	b.held[key] = heldKey{ticket: ticket, expiresAt: now.Add(ttl)}
	return ticket, true, nil
}

func (b *MemoryBackend) Release(_ context.Context, key, ticket string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.held[key]
	if !ok || h.ticket != ticket {
		return ErrNotHeld
	}
	delete(b.held, key)
	return nil
}
