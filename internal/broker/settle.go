package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/logging"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
)

type disposition int

const (
	dispositionAck disposition = iota
	dispositionRequeue
	// dispositionRepublished acks the delivery; an updated copy is already queued.
	dispositionRepublished
)

const republishTimeout = 5 * time.Second

func (d disposition) String() string {
	switch d {
	case dispositionRequeue:
		return "requeue"
	case dispositionRepublished:
		return "republished"
	default:
		return "ack"
	}
}

// settler applies the delivery contract shared by every transport.
type settler struct {
	logger          logger.Logger
	serviceName     string
	deadLetterQueue string
	deadLetter      func(ctx context.Context, msg models.RoutedMessage) error
	poison          func(ctx context.Context, body []byte, reason string) error
	// republish puts msg back on queue. Nil means requeue the original body.
	republish func(ctx context.Context, queue string, msg models.RoutedMessage) error
}

func (s *settler) settle(ctx context.Context, queue string, body []byte, handler HandlerFunc) disposition {
	metrics.IncBrokerConsumed(s.serviceName, queue)
	metrics.ObserveBrokerMessageSize(s.serviceName, queue, "consume", len(body))

	ctx = logging.WithServiceName(ctx, s.serviceName)

	var msg models.RoutedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return s.settlePoison(ctx, queue, body, err)
	}

	ctx = logging.WithMessageID(ctx, msg.Envelope.MessageID)
	if msg.Envelope.Metadata.TraceID != "" {
		ctx = logging.WithTraceID(ctx, msg.Envelope.Metadata.TraceID)
	}

	received := msg.Envelope.AttemptCount
	err := invoke(ctx, handler, &msg)
	if err == nil {
		return dispositionAck
	}

	if ctx.Err() != nil || stderrors.Is(err, ErrRequeue) {
		if ctx.Err() != nil {
			s.logger.WarnwCtx(ctx, "Handler interrupted by shutdown, leaving message for redelivery",
				"queue", queue,
				"error", err,
			)
		} else {
			s.logger.InfowCtx(ctx, "Handler asked for redelivery",
				"queue", queue,
				"error", err,
			)
		}
		return s.requeue(ctx, queue, msg, received)
	}

	if queue == s.deadLetterQueue {
		s.logger.ErrorwCtx(ctx, "Failed to handle dead letter, requeueing",
			"queue", queue,
			"error", err,
		)
		return dispositionRequeue
	}

	dead := msg
	dead.Envelope.Metadata.DeadLetter = &models.DeadLetterInfo{
		Reason:         err.Error(),
		SourceQueue:    queue,
		Attempts:       msg.Envelope.AttemptCount,
		DeadLetteredAt: time.Now().UTC(),
	}

	if dlqErr := s.deadLetter(ctx, dead); dlqErr != nil {
		s.logger.ErrorwCtx(ctx, "Failed to dead-letter message, requeueing",
			"queue", queue,
			"error", dlqErr,
			"handler_error", err,
		)
		return dispositionRequeue
	}

	reason := "handler_error"
	if errors.IsRetryExhausted(err) {
		reason = "retry_exhausted"
	}
	metrics.DLQMessagesTotal.WithLabelValues(s.serviceName, queue, reason).Inc()
	s.logger.WarnwCtx(ctx, "Message dead-lettered",
		"queue", queue,
		"dead_letter_queue", s.deadLetterQueue,
		"attempts", msg.Envelope.AttemptCount,
		"reason", err.Error(),
	)
	return dispositionAck
}

// requeue republishes msg with the attempt count the handler recorded. An
// unchanged count is requeued as received.
func (s *settler) requeue(ctx context.Context, queue string, msg models.RoutedMessage, received int) disposition {
	if s.republish == nil || queue == s.deadLetterQueue || msg.Envelope.AttemptCount == received {
		return dispositionRequeue
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), republishTimeout)
	defer cancel()
	if err := s.republish(rctx, queue, msg); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to republish message, requeueing it as received",
			"queue", queue,
			"attempt_count", msg.Envelope.AttemptCount,
			"error", err,
		)
		return dispositionRequeue
	}

	s.logger.InfowCtx(ctx, "Message republished for redelivery",
		"queue", queue,
		"attempt_count", msg.Envelope.AttemptCount,
	)
	return dispositionRepublished
}

func (s *settler) settlePoison(ctx context.Context, queue string, body []byte, decodeErr error) disposition {
	if queue == s.deadLetterQueue {
		s.logger.ErrorwCtx(ctx, "Dropping undecodable dead letter",
			"queue", queue,
			"error", decodeErr,
			"body", truncate(body),
		)
		return dispositionAck
	}

	if err := s.poison(ctx, body, decodeErr.Error()); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to dead-letter poison message, requeueing",
			"queue", queue,
			"error", err,
		)
		return dispositionRequeue
	}

	metrics.DLQMessagesTotal.WithLabelValues(s.serviceName, queue, "poison").Inc()
	s.logger.ErrorwCtx(ctx, "Poison message dead-lettered",
		"queue", queue,
		"error", decodeErr,
	)
	return dispositionAck
}

func invoke(ctx context.Context, handler HandlerFunc, msg *models.RoutedMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
		}
	}()
	return handler(ctx, msg)
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
