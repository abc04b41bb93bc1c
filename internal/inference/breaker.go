package inference

import (
	"context"
	"fmt"

	"cardassist/pkg/circuitbreaker"
	"cardassist/pkg/errors"
)

// BreakerClient stops calling a failing provider until the breaker half-opens.
type BreakerClient struct {
	next Client
	cb   *circuitbreaker.Breaker
}

func NewBreakerClient(next Client, cfg circuitbreaker.Config) *BreakerClient {
	return &BreakerClient{next: next, cb: circuitbreaker.New(cfg)}
}

func (b *BreakerClient) Infer(ctx context.Context, prompt string) (string, error) {
	return b.call(ctx, errors.ErrServiceUnavailable.AsRetryable(), func() (string, error) {
		return b.next.Infer(ctx, prompt)
	})
}

func (b *BreakerClient) ClassifyHint(ctx context.Context, prompt string) (string, error) {
	return b.call(ctx, errors.ErrClassificationProvider, func() (string, error) {
		return b.next.ClassifyHint(ctx, prompt)
	})
}

func (b *BreakerClient) call(ctx context.Context, kind *errors.Error, fn func() (string, error)) (string, error) {
	text, err := circuitbreaker.Execute(ctx, b.cb, fn)
	if circuitbreaker.Rejected(err) {
		return "", kind.WithCause(fmt.Errorf("circuit breaker %s is open: %w", b.cb.Name(), err))
	}
	return text, err
}

func (b *BreakerClient) IsOpen() bool {
	return b.cb.IsOpen()
}
