package idempotency

import (
	"context"
	"time"

	"cardassist/pkg/models"
)

// Record is the completed outcome for one message_id. A redelivered message
// that finds a record replays Response instead of dispatching again.
type Record struct {
	MessageID   string          `json:"message_id"`
	Response    models.Response `json:"response"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Store keeps one in-flight claim and at most one completion record per
// message_id.
type Store interface {
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, messageID string) (*Record, error)
	// Claim reports false when another worker already holds the claim.
	Claim(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
	// Complete writes the record and drops the claim.
	Complete(ctx context.Context, rec Record, ttl time.Duration) error
	Release(ctx context.Context, messageID string) error
}
