// Package idempotency makes consumer processing safe under at-least-once
// delivery: one completion record per message_id, plus a short-lived claim
// that keeps two workers from dispatching the same message at once.
package idempotency

import (
	"context"
	"net/http"
	"time"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
)

// ErrClaimHeld means another worker is processing the same message right now.
var ErrClaimHeld = errors.NewError("CLAIM_HELD", "message is being processed by another worker", http.StatusConflict).AsRetryable()

type Service struct {
	store    Store
	ttl      time.Duration
	claimTTL time.Duration
	poll     time.Duration
	allow    bool
	log      logger.Logger
}

func NewService(store Store, cfg config.IdempotencyConfig, log logger.Logger) *Service {
	s := &Service{
		store:    store,
		ttl:      cfg.TTL,
		claimTTL: cfg.ClaimTTL,
		poll:     cfg.ClaimPoll,
		allow:    cfg.OnStoreError != constants.FallbackDeny,
		log:      log,
	}
	if s.ttl <= 0 {
		s.ttl = constants.DefaultIdempotencyTTL
	}
	if s.claimTTL <= 0 {
		s.claimTTL = constants.DefaultClaimTTL
	}
	if s.poll <= 0 {
		s.poll = constants.DefaultClaimPollInterval
	}
	return s
}

// Completed returns the stored outcome for messageID, or nil.
func (s *Service) Completed(ctx context.Context, messageID string) (*Record, error) {
	rec, err := s.store.Get(ctx, messageID)
	if err != nil {
		return nil, s.onStoreError(ctx, "get", err)
	}
	if rec != nil {
		metrics.IdempotentReplaysTotal.Inc()
	}
	return rec, nil
}

// Claim fails with ErrClaimHeld when another worker holds the message.
func (s *Service) Claim(ctx context.Context, messageID string) error {
	claimed, err := s.store.Claim(ctx, messageID, s.claimTTL)
	if err != nil {
		return s.onStoreError(ctx, "claim", err)
	}
	if !claimed {
		return ErrClaimHeld.WithDetail("message_id", messageID)
	}
	return nil
}

func (s *Service) Complete(ctx context.Context, resp models.Response) error {
	rec := Record{MessageID: resp.MessageID, Response: resp, CompletedAt: time.Now().UTC()}
	if err := s.store.Complete(ctx, rec, s.ttl); err != nil {
		return s.onStoreError(ctx, "complete", err)
	}
	return nil
}

// Acquire returns the completion record when messageID is already done, or
// takes the claim. A claim held by another worker is waited out: the holder
// either completes, and its record is returned, or dies and the claim
// expires. ErrClaimHeld is returned only if the claim outlives its TTL.
func (s *Service) Acquire(ctx context.Context, messageID string) (*Record, error) {
	deadline := time.Now().Add(s.claimTTL + s.poll)
	waited := false

	for {
		rec, err := s.Completed(ctx, messageID)
		if err != nil || rec != nil {
			return rec, err
		}

		err = s.Claim(ctx, messageID)
		if err == nil || !errors.HasCode(err, ErrClaimHeld.Code) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, err
		}
		if !waited {
			waited = true
			metrics.ClaimWaitsTotal.Inc()
			s.log.InfowCtx(ctx, "Message claimed by another worker, waiting for its outcome",
				"claim_ttl", s.claimTTL,
			)
		}

		t := time.NewTimer(s.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Release drops the claim so the next attempt or redelivery can take it. It
// runs even when ctx is already cancelled, as on shutdown.
func (s *Service) Release(ctx context.Context, messageID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RedisReadTimeout)
	defer cancel()
	if err := s.store.Release(ctx, messageID); err != nil {
		s.log.WarnwCtx(ctx, "Failed to release idempotency claim", "error", err)
	}
}

func (s *Service) onStoreError(ctx context.Context, op string, err error) error {
	if s.allow {
		metrics.FallbackUsageTotal.WithLabelValues("idempotency", "allow_on_error", op).Inc()
		s.log.WarnwCtx(ctx, "Idempotency store error, continuing without it (fallback: allow)",
			"operation", op,
			"error", err,
		)
		return nil
	}
	metrics.FallbackUsageTotal.WithLabelValues("idempotency", "deny_on_error", op).Inc()
	return errors.ErrServiceUnavailable.AsRetryable().WithCause(err)
}
