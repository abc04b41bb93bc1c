// Package inference talks to the external text model used for classification
// hints and generative fallback replies.
package inference

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/pkg/circuitbreaker"
	"cardassist/pkg/errors"
)

// Client is the inference collaborator. Callers bound every call with a
// context deadline.
type Client interface {
	// Infer returns free text for prompt.
	Infer(ctx context.Context, prompt string) (string, error)
	// ClassifyHint returns the model's raw classification output for prompt.
	ClassifyHint(ctx context.Context, prompt string) (string, error)
}

var ErrEmptyCompletion = stderrors.New("empty completion")

var ErrNotConfigured = errors.NewError("INFERENCE_NOT_CONFIGURED", "no inference provider configured", http.StatusServiceUnavailable).AsFatal()

// New builds the configured client, wrapped in a circuit breaker when enabled.
func New(cfg config.InferenceConfig, cbCfg config.CircuitBreakerConfig) Client {
	var client Client
	switch strings.ToLower(cfg.Provider) {
	case constants.InferenceProviderOpenAI:
		client = NewOpenAIClient(cfg)
	default:
		return Disabled{}
	}

	if cbCfg.Enabled {
		client = NewBreakerClient(client, circuitbreaker.FromConfig("inference", cbCfg))
	}
	return client
}

// Disabled is used when no provider is configured; the classifier then runs
// on rules alone.
type Disabled struct{}

func (Disabled) Infer(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) ClassifyHint(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// translate maps a provider fault onto the error taxonomy. Deadline overruns
// become dispatch timeouts so the consumer retries them.
func translate(err error, kind *errors.Error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrDispatchTimeout.WithCause(err)
	}
	return kind.WithCause(err)
}
