package idempotency

import (
	"context"
	"fmt"
	"time"

	"cardassist/internal/config"
	"cardassist/pkg/circuitbreaker"
)

// CircuitBreakerStore stops hitting a failing store until the breaker
// half-opens. A disabled breaker passes every call through.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Breaker
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	s := &CircuitBreakerStore{store: store}
	if cfg.Enabled {
		s.cb = circuitbreaker.New(circuitbreaker.FromConfig("idempotency-store", cfg))
	}
	return s
}

func (s *CircuitBreakerStore) Get(ctx context.Context, messageID string) (*Record, error) {
	return guard(ctx, s, func() (*Record, error) {
		return s.store.Get(ctx, messageID)
	})
}

func (s *CircuitBreakerStore) Claim(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	return guard(ctx, s, func() (bool, error) {
		return s.store.Claim(ctx, messageID, ttl)
	})
}

func (s *CircuitBreakerStore) Complete(ctx context.Context, rec Record, ttl time.Duration) error {
	_, err := guard(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.store.Complete(ctx, rec, ttl)
	})
	return err
}

func (s *CircuitBreakerStore) Release(ctx context.Context, messageID string) error {
	_, err := guard(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.store.Release(ctx, messageID)
	})
	return err
}

func guard[T any](ctx context.Context, s *CircuitBreakerStore, fn func() (T, error)) (T, error) {
	if s.cb == nil {
		return fn()
	}
	v, err := circuitbreaker.Execute(ctx, s.cb, fn)
	if circuitbreaker.Rejected(err) {
		return v, fmt.Errorf("circuit breaker is open for %s: %w", s.cb.Name(), err)
	}
	return v, err
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) IsOpen() bool {
	return s.cb != nil && s.cb.IsOpen()
}
