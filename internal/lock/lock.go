// Package lock serializes work on a wallet across processes. The critical
// section receives a context that is cancelled with ErrLockExpired once the
// lock TTL has elapsed, so callers can refuse irreversible steps after it.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

var (
	ErrLockExpired = fmt.Errorf("lock ttl elapsed: %w", domain.ErrResourceExpiredLock)
	ErrNotHeld     = errors.New("lock not held by ticket")
)

// Backend stores exclusive keys with a TTL. Whoever holds the ticket
// returned by TryAcquire owns the key until it expires or is released.
type Backend interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (ticket string, ok bool, err error)
	Release(ctx context.Context, key, ticket string) error
}

type Config struct {
	TTL            time.Duration
	RetryDelay     time.Duration
	AcquireTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 50 * time.Millisecond
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	return c
}

type Service struct {
	backend Backend
	cfg     Config
}

func NewService(backend Backend, cfg Config) *Service {
	return &Service{backend: backend, cfg: cfg.withDefaults()}
}

func walletKey(id uuid.UUID) string { return "locks:wallet:" + id.String() }

// LockWalletID runs fn while holding the wallet's lock and returns fn's
// error. Acquisition that does not succeed within the acquire timeout fails
// with domain.ErrLockAcquireTimeout.
func (s *Service) LockWalletID(ctx context.Context, walletID uuid.UUID, fn func(ctx context.Context) error) error {
	log := logging.FromContext(ctx).With("wallet_id", walletID)
	key := walletKey(walletID)

	ticket, err := s.acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("LockWalletID: %w", err)
	}

	lockCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(s.cfg.TTL, func() { cancel(ErrLockExpired) })
	defer func() {
		timer.Stop()
		cancel(nil)
		if err := s.backend.Release(context.WithoutCancel(ctx), key, ticket); err != nil {
			log.Warn("wallet lock release failed", "error", err)
		}
	}()

	err = fn(lockCtx)
	// A read cut short by expiry surfaces as context.Canceled; report it as
	// the expired lock it really is.
	if errors.Is(err, context.Canceled) && errors.Is(context.Cause(lockCtx), ErrLockExpired) {
		return fmt.Errorf("LockWalletID: %w", ErrLockExpired)
	}
	return err
}

func (s *Service) acquire(ctx context.Context, key string) (string, error) {
	deadline := time.Now().Add(s.cfg.AcquireTimeout)
	for {
		ticket, ok, err := s.backend.TryAcquire(ctx, key, s.cfg.TTL)
		if err != nil {
			return "", fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return ticket, nil
		}
		if time.Now().Add(s.cfg.RetryDelay).After(deadline) {
			return "", domain.ErrLockAcquireTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}
}

// CheckHeld reports whether the lock behind ctx is still valid. It returns
// domain.ErrResourceExpiredLock once the TTL has elapsed.
func CheckHeld(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrLockExpired) {
		return cause
	}
	return ctx.Err()
}

func newTicket(r io.Reader) (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read ticket: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func randomTicket() (string, error) { return newTicket(rand.Reader) }
