// Package deadletter archives messages that reached the dead-letter queue
// and lets an operator replay them by hand.
package deadletter

import (
	"context"
	"fmt"
	"time"

	"cardassist/internal/broker"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
)

type Service struct {
	repo     Repository
	producer broker.Producer
	topology broker.Topology
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, producer broker.Producer, topology broker.Topology, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		producer: producer,
		topology: topology,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Archive is the dead-letter queue handler. A failed insert is returned so
// the broker redelivers the dead letter.
func (s *Service) Archive(ctx context.Context, msg *models.RoutedMessage) error {
	rec := Record{
		MessageID:      msg.Envelope.MessageID,
		RoutingKey:     msg.Target.RoutingKey(),
		Reason:         "unknown",
		Attempts:       msg.Envelope.AttemptCount,
		Payload:        *msg,
		DeadLetteredAt: s.now(),
	}
	if dl := msg.Envelope.Metadata.DeadLetter; dl != nil {
		rec.Reason = dl.Reason
		rec.SourceQueue = dl.SourceQueue
		rec.Attempts = dl.Attempts
		if !dl.DeadLetteredAt.IsZero() {
			rec.DeadLetteredAt = dl.DeadLetteredAt
		}
		if key, ok := s.topology.RoutingKeyFor(dl.SourceQueue); ok && key != constants.RoutingKeyDeadLetter {
			rec.RoutingKey = key
		}
	}

	inserted, err := s.repo.Insert(ctx, &rec)
	if err != nil {
		s.log.ErrorwCtx(ctx, "Failed to archive dead letter", "message_id", rec.MessageID, "error", err)
		return err
	}
	if !inserted {
		s.log.DebugwCtx(ctx, "Dead letter already archived", "message_id", rec.MessageID)
		return nil
	}

	s.log.InfowCtx(ctx, "Dead letter archived",
		"id", rec.ID,
		"message_id", rec.MessageID,
		"reason", rec.Reason,
		"attempts", rec.Attempts,
		"source_queue", rec.SourceQueue,
	)
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	if filter.Limit <= 0 || filter.Limit > constants.MaxLimit {
		filter.Limit = constants.DefaultLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.repo.Get(ctx, id)
}

// Replay republishes an archived message under its original routing key with
// a fresh attempt budget. A record can be replayed once; a second replay is
// a conflict.
func (s *Service) Replay(ctx context.Context, id, actor string) (*Record, error) {
	if actor == "" {
		return nil, errors.ErrValidation.WithDetail("message", "actor is required")
	}

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Replayed() {
		metrics.DeadLettersReplayedTotal.WithLabelValues("conflict").Inc()
		return nil, alreadyReplayed(id)
	}
	if _, ok := s.topology.QueueFor(rec.RoutingKey); !ok || rec.RoutingKey == constants.RoutingKeyDeadLetter {
		return nil, errors.ErrValidation.WithDetail("message", fmt.Sprintf("dead letter %s has no replayable routing key %q", id, rec.RoutingKey))
	}

	at := s.now()
	if err := s.repo.MarkReplayed(ctx, id, actor, at); err != nil {
		if errors.IsConflict(err) {
			metrics.DeadLettersReplayedTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	msg := rec.Payload
	msg.Envelope.AttemptCount = 0
	msg.Envelope.Metadata.DeadLetter = nil
	if err := s.producer.Publish(ctx, rec.RoutingKey, msg); err != nil {
		metrics.DeadLettersReplayedTotal.WithLabelValues("publish_failed").Inc()
		if uerr := s.repo.UnmarkReplayed(ctx, id); uerr != nil {
			s.log.ErrorwCtx(ctx, "Failed to reset replay mark after publish failure", "id", id, "error", uerr)
		}
		if errors.IsBrokerUnavailable(err) {
			return nil, err
		}
		return nil, errors.ErrBrokerUnavailable.WithCause(err)
	}

	metrics.DeadLettersReplayedTotal.WithLabelValues("success").Inc()
	s.log.InfowCtx(ctx, "Dead letter replayed",
		"id", id,
		"message_id", rec.MessageID,
		"routing_key", rec.RoutingKey,
		"actor", actor,
	)

	rec.ReplayedAt = &at
	rec.ReplayedBy = actor
	return rec, nil
}
