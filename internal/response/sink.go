// Package response hands finished replies back to the originating channel.
package response

import (
	"context"

	"cardassist/pkg/models"
)

// Sink delivers a reply. Deliver must be safe to call again with the same
// response; redelivered messages replay their stored outcome through it.
type Sink interface {
	Deliver(ctx context.Context, resp models.Response) error
}

// Store keeps replies for the ingress to pick up. Get returns nil, nil while
// no reply exists.
type Store interface {
	Sink
	Get(ctx context.Context, messageID string) (*models.Response, error)
}
