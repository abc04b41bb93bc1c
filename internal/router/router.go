// Package router classifies inbound envelopes and either answers them inline
// or publishes them for the consumers.
package router

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cardassist/internal/broker"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
	"cardassist/pkg/tracing"
)

type Classifier interface {
	Classify(ctx context.Context, text string) models.ClassificationResult
}

type Router struct {
	classifier Classifier
	producer   broker.Producer
	billTarget models.DispatchTarget
	log        logger.Logger
}

// New builds a Router. billTarget is where BILL_QUERY goes: action_api or
// knowledge_base.
func New(classifier Classifier, producer broker.Producer, billTarget string, log logger.Logger) *Router {
	target := models.TargetActionAPI
	if billTarget == constants.BillTargetKnowledge {
		target = models.TargetKnowledgeBase
	}
	return &Router{
		classifier: classifier,
		producer:   producer,
		billTarget: target,
		log:        log,
	}
}

// TargetFor is the only place an intent is bound to a destination.
func TargetFor(intent models.Intent, billTarget models.DispatchTarget) models.DispatchTarget {
	switch intent {
	case models.IntentGreeting:
		return models.TargetDirectReply
	case models.IntentKnowledgeQuery, models.IntentAccountInfo, models.IntentTransactionQuery, models.IntentRepaymentQuery:
		return models.TargetKnowledgeBase
	case models.IntentBlockCard, models.IntentCheckDeliveryStatus, models.IntentConvertToEMI,
		models.IntentDownloadStatement, models.IntentCheckDueAmount:
		return models.TargetActionAPI
	case models.IntentBillQuery:
		return billTarget
	case models.IntentUnknown:
		return models.TargetGenerativeFallback
	default:
		return models.TargetGenerativeFallback
	}
}

// DirectReply is the inline answer for intents that skip the broker.
func DirectReply(intent models.Intent) string {
	switch intent {
	case models.IntentGreeting:
		return constants.GreetingReply
	default:
		return constants.GenericFallback
	}
}

// Route classifies env exactly once. Direct replies never touch the broker;
// everything else is published under the target's routing key, and a failed
// publish is reported as ErrBrokerUnavailable.
func (r *Router) Route(ctx context.Context, env *models.MessageEnvelope) (models.RoutingDecision, error) {
	ctx, span := tracing.GetTracer(constants.ServiceNameRouter).Start(ctx, "router.route")
	defer span.End()

	if err := models.ValidateMessageEnvelope(env); err != nil {
		return models.RoutingDecision{}, errors.ErrValidation.WithDetail("message", err.Error()).WithCause(err)
	}

	classification := r.classifier.Classify(ctx, env.Text)
	target := TargetFor(classification.Intent, r.billTarget)
	decision := models.RoutingDecision{
		EnvelopeRef:    env.MessageID,
		Classification: classification,
		DispatchTarget: target,
		Queued:         target != models.TargetDirectReply,
	}
	span.SetAttributes(
		attribute.String("intent", string(classification.Intent)),
		attribute.String("source", string(classification.Source)),
		attribute.String("target", string(target)),
	)

	if !decision.Queued {
		metrics.IncRoutingDecision(string(target))
		r.log.InfowCtx(ctx, "Direct reply",
			"intent", classification.Intent,
			"source", classification.Source,
		)
		return decision, nil
	}

	if env.Metadata.TraceID == "" {
		env.Metadata.TraceID = tracing.TraceID(ctx)
	}
	msg := models.RoutedMessage{
		Envelope:       *env,
		Classification: classification,
		Target:         target,
		RoutedAt:       time.Now().UTC(),
	}

	if err := r.producer.Publish(ctx, target.RoutingKey(), msg); err != nil {
		span.RecordError(err)
		metrics.IncRoutingDecision("publish_failed")
		r.log.ErrorwCtx(ctx, "Failed to publish routed message",
			"target", target,
			"error", err,
		)
		if errors.IsBrokerUnavailable(err) {
			return decision, err
		}
		return decision, errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("publish to %s: %w", target.RoutingKey(), err))
	}

	metrics.IncRoutingDecision(string(target))
	r.log.InfowCtx(ctx, "Message queued",
		"intent", classification.Intent,
		"source", classification.Source,
		"confidence", classification.Confidence,
		"target", target,
	)
	return decision, nil
}
