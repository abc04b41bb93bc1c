// Package consumer drives a routed message from the queue to a delivered
// response: classify, dispatch by target, respond, then ack or dead-letter.
package consumer

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cardassist/internal/actions"
	"cardassist/internal/broker"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/idempotency"
	"cardassist/internal/inference"
	"cardassist/internal/knowledge"
	"cardassist/internal/logger"
	"cardassist/internal/response"
	"cardassist/internal/router"
	"cardassist/pkg/errors"
	"cardassist/pkg/logging"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
	"cardassist/pkg/retry"
	"cardassist/pkg/tracing"
)

type State string

const (
	StateReceived     State = "received"
	StateClassifying  State = "classifying"
	StateDispatching  State = "dispatching"
	StateResponding   State = "responding"
	StateAcknowledged State = "acknowledged"
	StateFailed       State = "failed"
	StateDeadLettered State = "dead_lettered"
)

// Outcome is the terminal result of Process. Err is set for dead-lettered
// messages and for processing abandoned because the context ended.
type Outcome struct {
	MessageID string
	State     State
	Attempts  int
	Response  *models.Response
	Replayed  bool
	Err       error
}

type Classifier interface {
	Classify(ctx context.Context, text string) models.ClassificationResult
}

type KnowledgeSearcher interface {
	Search(intent models.Intent, text string) knowledge.Result
}

type ActionDispatcher interface {
	Dispatch(ctx context.Context, intent models.Intent, params models.Params, authToken string) (*actions.Result, error)
}

type Generator interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// Deps are the collaborators a Processor dispatches to. Idempotency may be
// nil, in which case redeliveries are processed again.
type Deps struct {
	Classifier  Classifier
	Knowledge   KnowledgeSearcher
	Actions     ActionDispatcher
	Generator   Generator
	Sink        response.Sink
	Idempotency *idempotency.Service
}

type Processor struct {
	deps            Deps
	policy          retry.Policy
	dispatchTimeout time.Duration
	reclassify      bool
	generateOnMiss  bool
	billTarget      models.DispatchTarget
	log             logger.Logger
}

func NewProcessor(deps Deps, cfg config.ConsumerConfig, billTarget string, log logger.Logger) *Processor {
	if deps.Generator == nil {
		deps.Generator = inference.Disabled{}
	}

	policy := retry.Policy{
		MaxAttempts:     cfg.RetryCeiling,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		IsFatal: func(err error) bool {
			return !errors.Retryable(err)
		},
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = constants.DefaultRetryCeiling
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = constants.DefaultRetryInitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = constants.DefaultRetryMaxInterval
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = constants.DefaultRetryMultiplier
	}

	timeout := cfg.DispatchTimeout
	if timeout <= 0 {
		timeout = constants.DefaultDispatchTimeout
	}

	target := models.TargetActionAPI
	if billTarget == constants.BillTargetKnowledge {
		target = models.TargetKnowledgeBase
	}

	return &Processor{
		deps:            deps,
		policy:          policy,
		dispatchTimeout: timeout,
		reclassify:      cfg.Reclassify && deps.Classifier != nil,
		generateOnMiss:  cfg.GenerateOnNoMatch,
		billTarget:      target,
		log:             log,
	}
}

// Handle is the broker.HandlerFunc for the work queues. A nil return acks the
// delivery; ErrRetryExhausted sends it to the dead-letter queue. A context
// error or a message that could not be taken right now (claim held elsewhere,
// idempotency store down) goes back to the queue.
func (p *Processor) Handle(ctx context.Context, msg *models.RoutedMessage) error {
	out := p.Process(ctx, msg)
	switch out.State {
	case StateAcknowledged:
		return nil
	case StateFailed:
		if ctx.Err() != nil {
			return out.Err
		}
		return fmt.Errorf("%w: %w", broker.ErrRequeue, out.Err)
	default:
		return out.Err
	}
}

// Process runs one message through the state machine. Every attempt
// increments msg.Envelope.AttemptCount, and the count the message arrives
// with is spent budget: a redelivered message only gets the attempts left
// under the retry ceiling. A message still failing at the ceiling gets the
// apology reply and ends dead-lettered.
func (p *Processor) Process(ctx context.Context, msg *models.RoutedMessage) Outcome {
	ctx, span := tracing.GetTracer(constants.ServiceNameConsumer).Start(ctx, "consumer.process")
	defer span.End()

	env := &msg.Envelope
	queue := msg.Target.RoutingKey()
	ctx = logging.WithMessageID(ctx, env.MessageID)
	span.SetAttributes(
		attribute.String("message_id", env.MessageID),
		attribute.String("target", string(msg.Target)),
	)

	start := time.Now()
	out := Outcome{MessageID: env.MessageID, State: StateReceived}
	p.log.DebugwCtx(ctx, "Message received",
		"target", msg.Target,
		"intent", msg.Classification.Intent,
		"attempt_count", env.AttemptCount,
	)

	idem := p.deps.Idempotency
	if idem != nil {
		rec, err := idem.Acquire(ctx, env.MessageID)
		if err != nil {
			out.State = StateFailed
			out.Err = err
			p.log.WarnwCtx(ctx, "Message not taken, leaving it for redelivery", "error", err)
			return p.finish(ctx, msg, out, start)
		}
		if rec != nil {
			return p.finish(ctx, msg, p.replay(ctx, rec, out), start)
		}
	}
	release := func() {
		if idem != nil {
			idem.Release(ctx, env.MessageID)
		}
	}

	policy := p.policy
	policy.MaxAttempts = p.policy.MaxAttempts - env.AttemptCount
	if policy.MaxAttempts <= 0 {
		release()
		out.State = StateDeadLettered
		out.Err = errors.ErrRetryExhausted.
			WithDetail("attempts", env.AttemptCount).
			WithDetail("message", "attempt count already at the retry ceiling")
		out.Response = p.apologize(ctx, msg)
		p.log.ErrorwCtx(ctx, "Message arrived with its retries spent, dead-lettering",
			"attempt_count", env.AttemptCount,
			"retry_ceiling", p.policy.MaxAttempts,
		)
		return p.finish(ctx, msg, out, start)
	}

	// undelivered is an answer already recorded whose delivery failed; later
	// attempts only deliver it.
	var undelivered *models.Response
	attempt := func() error {
		env.AttemptCount++
		out.Attempts++
		if undelivered != nil {
			out.State = StateResponding
			if err := p.deps.Sink.Deliver(ctx, *undelivered); err != nil {
				out.State = StateFailed
				return err
			}
			out.Response = undelivered
			return nil
		}
		resp, err := p.attempt(ctx, msg, &out)
		if err != nil {
			undelivered = resp
			out.State = StateFailed
			return err
		}
		out.Response = resp
		return nil
	}
	onRetry := func(n int, err error, next time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(constants.ServiceNameConsumer, queue).Inc()
		p.log.WarnwCtx(ctx, "Attempt failed, retrying",
			"attempt", n,
			"attempt_count", env.AttemptCount,
			"next_delay", next,
			"error", err,
		)
	}

	err := retry.RetryWithCallback(ctx, policy, attempt, onRetry)
	switch {
	case err == nil:
		out.State = StateAcknowledged
	case ctx.Err() != nil:
		release()
		out.State = StateFailed
		out.Err = ctx.Err()
		p.log.WarnwCtx(ctx, "Processing abandoned, message left for redelivery",
			"attempt_count", env.AttemptCount,
			"error", err,
		)
	default:
		release()
		span.RecordError(err)
		out.State = StateDeadLettered
		out.Err = errors.ErrRetryExhausted.
			WithDetail("attempts", env.AttemptCount).
			WithCause(err)
		out.Response = p.apologize(ctx, msg)
		p.log.ErrorwCtx(ctx, "Message dead-lettered",
			"attempt_count", env.AttemptCount,
			"error", err,
		)
	}
	return p.finish(ctx, msg, out, start)
}

// replay delivers the stored answer of a completed message again without
// dispatching it.
func (p *Processor) replay(ctx context.Context, rec *idempotency.Record, out Outcome) Outcome {
	out.State = StateResponding
	p.log.InfowCtx(ctx, "Replaying completed message")

	err := retry.Retry(ctx, p.policy, func() error {
		return p.deps.Sink.Deliver(ctx, rec.Response)
	})
	if err != nil {
		out.State = StateFailed
		out.Err = err
		return out
	}
	out.State = StateAcknowledged
	out.Response = &rec.Response
	out.Replayed = true
	return out
}

func (p *Processor) finish(ctx context.Context, msg *models.RoutedMessage, out Outcome, start time.Time) Outcome {
	queue := msg.Target.RoutingKey()
	elapsed := time.Since(start)
	metrics.IncConsumerMessage(queue, string(out.State))
	metrics.ObserveConsumerDuration(queue, string(out.State), elapsed)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("state", string(out.State)),
		attribute.Int("attempts", out.Attempts),
	)
	if out.State == StateAcknowledged {
		p.log.InfowCtx(ctx, "Message acknowledged",
			"intent", msg.Classification.Intent,
			"attempts", out.Attempts,
			"replayed", out.Replayed,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return out
}

// attempt is one pass through classifying, dispatching and responding. The
// caller holds the idempotency claim for the whole retry loop. A failed
// delivery returns the recorded response along with the error.
func (p *Processor) attempt(ctx context.Context, msg *models.RoutedMessage, out *Outcome) (*models.Response, error) {
	env := &msg.Envelope

	out.State = StateClassifying
	classification := p.classify(ctx, msg)

	out.State = StateDispatching
	reply, err := p.dispatch(ctx, msg, classification)
	if err != nil {
		return nil, err
	}

	resp := models.Response{
		MessageID:    env.MessageID,
		UserID:       env.UserID,
		Channel:      env.Channel,
		Text:         reply.text,
		Intent:       classification.Intent,
		Confidence:   classification.Confidence,
		Target:       msg.Target,
		ActionTaken:  reply.action,
		RequiresAuth: reply.requiresAuth,
		Status:       models.ResponseAnswered,
		CreatedAt:    time.Now().UTC(),
	}

	// The record is written before delivery so a redelivery after a sink
	// failure replays this answer instead of dispatching again.
	if idem := p.deps.Idempotency; idem != nil {
		if err := idem.Complete(ctx, resp); err != nil {
			return nil, err
		}
	}

	out.State = StateResponding
	if err := p.deps.Sink.Deliver(ctx, resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}

func (p *Processor) classify(ctx context.Context, msg *models.RoutedMessage) models.ClassificationResult {
	if !p.reclassify {
		return msg.Classification
	}

	result := p.deps.Classifier.Classify(ctx, msg.Envelope.Text)
	if router.TargetFor(result.Intent, p.billTarget) != msg.Target {
		p.log.WarnwCtx(ctx, "Reclassification disagrees with queue, keeping routed intent",
			"routed_intent", msg.Classification.Intent,
			"reclassified_intent", result.Intent,
			"target", msg.Target,
		)
		return msg.Classification
	}
	if result.ExtractedParams == nil {
		result.ExtractedParams = msg.Classification.ExtractedParams
	}
	return result
}

type reply struct {
	text         string
	action       string
	requiresAuth bool
}

// dispatch bounds the target call by the dispatch timeout. Business outcomes
// (unauthorized, missing parameter, not found, invalid input) become replies.
func (p *Processor) dispatch(ctx context.Context, msg *models.RoutedMessage, c models.ClassificationResult) (reply, error) {
	dctx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
	defer cancel()

	var (
		r   reply
		err error
	)
	switch msg.Target {
	case models.TargetKnowledgeBase:
		r = p.answerFromKnowledge(dctx, c.Intent, msg.Envelope.Text)
	case models.TargetActionAPI:
		r, err = p.runAction(dctx, c, msg.Envelope.AuthToken)
	case models.TargetGenerativeFallback:
		r, err = p.generate(dctx, c.Intent, msg.Envelope.Text)
	case models.TargetDirectReply:
		r = reply{text: router.DirectReply(c.Intent)}
	default:
		return reply{}, errors.ErrValidation.WithDetail("message", fmt.Sprintf("unknown dispatch target %q", msg.Target))
	}

	if err != nil && dctx.Err() == context.DeadlineExceeded && ctx.Err() == nil && !errors.IsDispatchTimeout(err) {
		err = errors.ErrDispatchTimeout.WithCause(err)
	}
	return r, err
}

func (p *Processor) answerFromKnowledge(ctx context.Context, intent models.Intent, text string) reply {
	result := p.deps.Knowledge.Search(intent, text)
	if result.Matched || !p.generateOnMiss {
		return reply{text: result.Answer}
	}

	generated, err := p.deps.Generator.Infer(ctx, generationPrompt(intent, text))
	if err != nil {
		if !notConfigured(err) {
			p.log.WarnwCtx(ctx, "Generation for unmatched knowledge query failed", "error", err)
		}
		return reply{text: result.Answer}
	}
	return reply{text: generated}
}

func (p *Processor) runAction(ctx context.Context, c models.ClassificationResult, token string) (reply, error) {
	result, err := p.deps.Actions.Dispatch(ctx, c.Intent, c.ExtractedParams, token)
	if err == nil {
		return reply{text: result.Reply, action: result.Action}, nil
	}

	switch {
	case errors.IsUnauthorized(err):
		return reply{text: detailMessage(err, constants.AuthRequiredReply), requiresAuth: true}, nil
	case errors.IsMissingParameter(err):
		return reply{text: fmt.Sprintf(constants.MissingParamReplyFm, parameterName(err))}, nil
	case errors.IsNotFound(err), errors.IsValidation(err):
		return reply{text: detailMessage(err, constants.ApologyReply)}, nil
	default:
		return reply{}, err
	}
}

func (p *Processor) generate(ctx context.Context, intent models.Intent, text string) (reply, error) {
	generated, err := p.deps.Generator.Infer(ctx, generationPrompt(intent, text))
	if notConfigured(err) {
		return reply{text: constants.GenericFallback}, nil
	}
	if err != nil {
		return reply{}, err
	}
	return reply{text: generated}, nil
}

// apologize delivers the failure reply. Delivery errors are logged; the
// message is dead-lettered either way.
func (p *Processor) apologize(ctx context.Context, msg *models.RoutedMessage) *models.Response {
	env := msg.Envelope
	resp := models.Response{
		MessageID:  env.MessageID,
		UserID:     env.UserID,
		Channel:    env.Channel,
		Text:       constants.ApologyReply,
		Intent:     msg.Classification.Intent,
		Confidence: msg.Classification.Confidence,
		Target:     msg.Target,
		Status:     models.ResponseFailed,
		CreatedAt:  time.Now().UTC(),
	}

	// The original context may be near its end; the apology gets its own budget.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.dispatchTimeout)
	defer cancel()
	if err := p.deps.Sink.Deliver(dctx, resp); err != nil {
		p.log.ErrorwCtx(ctx, "Failed to deliver apology", "error", err)
	}
	return &resp
}

func generationPrompt(intent models.Intent, text string) string {
	var b strings.Builder
	b.WriteString("Customer message: ")
	b.WriteString(text)
	if intent != "" && intent != models.IntentUnknown {
		b.WriteString("\nDetected intent: ")
		b.WriteString(string(intent))
	}
	b.WriteString("\nAnswer briefly. If the request is outside credit card support, say what you can help with.")
	return b.String()
}

func detailMessage(err error, fallback string) string {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		if msg, ok := appErr.Details["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fallback
}

func parameterName(err error) string {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		if name, ok := appErr.Details["parameter"].(string); ok && name != "" {
			return strings.ReplaceAll(name, "_", " ")
		}
	}
	return "details"
}

func notConfigured(err error) bool {
	return errors.HasCode(err, inference.ErrNotConfigured.Code)
}
