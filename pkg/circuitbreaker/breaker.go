// Package circuitbreaker guards calls to the inference provider and the
// idempotency store with a gobreaker instance that reports its state to
// Prometheus.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"

	"cardassist/internal/config"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
)

const (
	defaultMaxRequests  = 3
	defaultTimeout      = 60 * time.Second
	defaultFailureRatio = 0.5
	defaultMinRequests  = 3
)

type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	FailureRatio  float64
	MinRequests   uint32
	OnStateChange func(name string, from, to gobreaker.State)
}

// FromConfig names a breaker and copies the shared settings.
func FromConfig(name string, cfg config.CircuitBreakerConfig) Config {
	return Config{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		FailureRatio: cfg.FailureRatio,
		MinRequests:  cfg.MinRequests,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRequests == 0 {
		c.MaxRequests = defaultMaxRequests
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = defaultFailureRatio
	}
	if c.MinRequests == 0 {
		c.MinRequests = defaultMinRequests
	}
	return c
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New trips once MinRequests calls were seen in the interval and the failure
// ratio reached FailureRatio. Fatal errors are the caller's fault and do not
// count as failures.
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			setStateGauge(name, to)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	setStateGauge(cfg.Name, cb.State())
	return &Breaker{cb: cb}
}

// Execute runs fn through b. A done context is returned without calling fn
// and without counting against the breaker.
func Execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	metrics.CircuitBreakerRequests.WithLabelValues(b.Name(), b.cb.State().String()).Inc()
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.Name()).Inc()
		return zero, err
	}

	v, _ := result.(T)
	return v, nil
}

// Rejected reports whether err came from the breaker refusing the call.
func Rejected(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests)
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func setStateGauge(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
}
