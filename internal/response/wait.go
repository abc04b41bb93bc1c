package response

import (
	"context"
	"time"

	"cardassist/internal/constants"
	"cardassist/pkg/models"
)

// Wait polls store until the reply for messageID exists or ctx ends. It
// returns nil, ctx.Err() on timeout.
func Wait(ctx context.Context, store Store, messageID string, interval time.Duration) (*models.Response, error) {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := store.Get(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
