package consumer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/actions"
	"cardassist/internal/auth"
	"cardassist/internal/broker"
	"cardassist/internal/classifier"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/idempotency"
	"cardassist/internal/knowledge"
	"cardassist/internal/logger"
	"cardassist/internal/response"
	"cardassist/internal/router"
	"cardassist/pkg/errors"
	"cardassist/pkg/models"
)

type dispatchFunc func(ctx context.Context, intent models.Intent, params models.Params, token string) (*actions.Result, error)

func (f dispatchFunc) Dispatch(ctx context.Context, intent models.Intent, params models.Params, token string) (*actions.Result, error) {
	return f(ctx, intent, params, token)
}

type countingDispatcher struct {
	next  ActionDispatcher
	calls atomic.Int32
}

func (c *countingDispatcher) Dispatch(ctx context.Context, intent models.Intent, params models.Params, token string) (*actions.Result, error) {
	c.calls.Add(1)
	return c.next.Dispatch(ctx, intent, params, token)
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Infer(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var testConsumerConfig = config.ConsumerConfig{
	RetryCeiling:    3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	Multiplier:      2,
	DispatchTimeout: 200 * time.Millisecond,
}

func newIndex(t *testing.T) *knowledge.Index {
	t.Helper()
	idx, err := knowledge.Load(context.Background(), knowledge.EmbeddedSource{})
	require.NoError(t, err)
	return idx
}

func newActions(t *testing.T) (*actions.Dispatcher, string) {
	t.Helper()
	m := auth.NewManager(config.AuthConfig{JWTSecret: "consumer-test-secret"})
	token, err := m.Issue("u1")
	require.NoError(t, err)
	svc := actions.NewService(actions.NewMemoryRepository(), logger.NopLogger())
	return actions.NewDispatcher(svc, m, logger.NopLogger()), token
}

func routed(id string, intent models.Intent, target models.DispatchTarget, text, token string, params models.Params) *models.RoutedMessage {
	return &models.RoutedMessage{
		Envelope: models.MessageEnvelope{
			MessageID: id,
			UserID:    "u1",
			Channel:   models.ChannelWeb,
			Text:      text,
			AuthToken: token,
		},
		Classification: models.ClassificationResult{
			Intent:          intent,
			Confidence:      0.9,
			Source:          models.SourceLLM,
			ExtractedParams: params,
		},
		Target: target,
	}
}

func TestProcess_KnowledgeAnswer(t *testing.T) {
	sink := response.NewMemoryStore()
	p := NewProcessor(Deps{Knowledge: newIndex(t), Sink: sink}, testConsumerConfig, "", logger.NopLogger())

	msg := routed("m1", models.IntentRepaymentQuery, models.TargetKnowledgeBase, "How do I set up autopay?", "", nil)
	out := p.Process(context.Background(), msg)

	require.Equal(t, StateAcknowledged, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, msg.Envelope.AttemptCount)
	require.NoError(t, out.Err)

	got, err := sink.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, got.Text, "autopay")
	assert.Equal(t, models.ResponseAnswered, got.Status)
	assert.Equal(t, models.IntentRepaymentQuery, got.Intent)
}

func TestProcess_KnowledgeNoMatch(t *testing.T) {
	idx := newIndex(t)
	text := "zzqx frobnicate wibble"
	require.False(t, idx.Search(models.IntentKnowledgeQuery, text).Matched)

	t.Run("fixed reply by default", func(t *testing.T) {
		var calls atomic.Int32
		gen := generatorFunc(func(context.Context, string) (string, error) {
			calls.Add(1)
			return "generated answer", nil
		})
		p := NewProcessor(Deps{Knowledge: idx, Generator: gen, Sink: response.NewMemoryStore()}, testConsumerConfig, "", logger.NopLogger())

		out := p.Process(context.Background(), routed("m1", models.IntentKnowledgeQuery, models.TargetKnowledgeBase, text, "", nil))
		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, constants.NoMatchReply, out.Response.Text)
		assert.Zero(t, calls.Load())
	})

	cfg := testConsumerConfig
	cfg.GenerateOnNoMatch = true

	t.Run("generated when enabled", func(t *testing.T) {
		gen := generatorFunc(func(context.Context, string) (string, error) { return "generated answer", nil })
		p := NewProcessor(Deps{Knowledge: idx, Generator: gen, Sink: response.NewMemoryStore()}, cfg, "", logger.NopLogger())

		out := p.Process(context.Background(), routed("m2", models.IntentKnowledgeQuery, models.TargetKnowledgeBase, text, "", nil))
		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, "generated answer", out.Response.Text)
	})

	t.Run("provider failure keeps no-match answer", func(t *testing.T) {
		gen := generatorFunc(func(context.Context, string) (string, error) {
			return "", errors.ErrServiceUnavailable.AsRetryable()
		})
		p := NewProcessor(Deps{Knowledge: idx, Generator: gen, Sink: response.NewMemoryStore()}, cfg, "", logger.NopLogger())

		out := p.Process(context.Background(), routed("m3", models.IntentKnowledgeQuery, models.TargetKnowledgeBase, text, "", nil))
		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, 1, out.Attempts)
		assert.Equal(t, constants.NoMatchReply, out.Response.Text)
	})
}

func TestProcess_ActionReplies(t *testing.T) {
	d, token := newActions(t)

	tests := []struct {
		name         string
		intent       models.Intent
		token        string
		params       models.Params
		wantText     string
		wantAction   string
		requiresAuth bool
	}{
		{
			name:         "missing token",
			intent:       models.IntentBlockCard,
			params:       models.Params{models.ParamCardLast4: "1234"},
			wantText:     constants.AuthRequiredReply,
			requiresAuth: true,
		},
		{
			name:     "missing parameter",
			intent:   models.IntentBlockCard,
			token:    token,
			wantText: "please provide your card last4",
		},
		{
			name:     "not found",
			intent:   models.IntentBlockCard,
			token:    token,
			params:   models.Params{models.ParamCardLast4: "9999"},
			wantText: "9999",
		},
		{
			name:       "block card",
			intent:     models.IntentBlockCard,
			token:      token,
			params:     models.Params{models.ParamCardLast4: "1234"},
			wantText:   "has been blocked",
			wantAction: actions.ActionBlockCard,
		},
		{
			name:       "bill",
			intent:     models.IntentBillQuery,
			token:      token,
			wantText:   "INR 15,000.00",
			wantAction: actions.ActionGetBill,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := response.NewMemoryStore()
			p := NewProcessor(Deps{Actions: d, Sink: sink}, testConsumerConfig, "", logger.NopLogger())

			out := p.Process(context.Background(), routed("m-"+tt.name, tt.intent, models.TargetActionAPI, "text", tt.token, tt.params))

			require.Equal(t, StateAcknowledged, out.State)
			assert.Equal(t, 1, out.Attempts)
			assert.Contains(t, out.Response.Text, tt.wantText)
			assert.Equal(t, tt.wantAction, out.Response.ActionTaken)
			assert.Equal(t, tt.requiresAuth, out.Response.RequiresAuth)
			assert.Equal(t, 1, sink.Deliveries())
		})
	}
}

func TestProcess_RetryCeilingDeadLetters(t *testing.T) {
	sink := response.NewMemoryStore()
	var calls atomic.Int32
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		calls.Add(1)
		return nil, errors.ErrDispatchTimeout
	})
	p := NewProcessor(Deps{Actions: d, Sink: sink}, testConsumerConfig, "", logger.NopLogger())

	msg := routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "what is due", "t", nil)
	out := p.Process(context.Background(), msg)

	assert.Equal(t, StateDeadLettered, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, msg.Envelope.AttemptCount)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, errors.IsRetryExhausted(out.Err))
	assert.True(t, errors.IsDispatchTimeout(out.Err))

	got, err := sink.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, constants.ApologyReply, got.Text)
	assert.Equal(t, models.ResponseFailed, got.Status)
}

func TestProcess_FatalErrorStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		calls.Add(1)
		return nil, errors.ErrInternal.AsFatal()
	})
	p := NewProcessor(Deps{Actions: d, Sink: response.NewMemoryStore()}, testConsumerConfig, "", logger.NopLogger())

	out := p.Process(context.Background(), routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil))

	assert.Equal(t, StateDeadLettered, out.State)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, constants.ApologyReply, out.Response.Text)
}

func TestProcess_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		if calls.Add(1) == 1 {
			return nil, errors.ErrServiceUnavailable.AsRetryable()
		}
		return &actions.Result{Action: actions.ActionCheckOverdue, Reply: "no overdue"}, nil
	})
	p := NewProcessor(Deps{Actions: d, Sink: response.NewMemoryStore()}, testConsumerConfig, "", logger.NopLogger())

	msg := routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil)
	out := p.Process(context.Background(), msg)

	require.Equal(t, StateAcknowledged, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, msg.Envelope.AttemptCount)
	assert.Equal(t, "no overdue", out.Response.Text)
}

func TestProcess_DispatchTimeout(t *testing.T) {
	d := dispatchFunc(func(ctx context.Context, _ models.Intent, _ models.Params, _ string) (*actions.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := testConsumerConfig
	cfg.RetryCeiling = 2
	cfg.DispatchTimeout = 10 * time.Millisecond
	p := NewProcessor(Deps{Actions: d, Sink: response.NewMemoryStore()}, cfg, "", logger.NopLogger())

	out := p.Process(context.Background(), routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil))

	assert.Equal(t, StateDeadLettered, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.True(t, errors.IsDispatchTimeout(out.Err))
}

func TestProcess_CancelledContextLeavesMessageForRedelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := response.NewMemoryStore()
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		cancel()
		return nil, errors.ErrServiceUnavailable.AsRetryable()
	})
	p := NewProcessor(Deps{Actions: d, Sink: sink}, testConsumerConfig, "", logger.NopLogger())

	out := p.Process(ctx, routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil))

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, 0, sink.Deliveries())
}

func TestProcess_GenerativeFallback(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		p := NewProcessor(Deps{Sink: response.NewMemoryStore()}, testConsumerConfig, "", logger.NopLogger())
		out := p.Process(context.Background(), routed("m1", models.IntentUnknown, models.TargetGenerativeFallback, "sing me a song", "", nil))
		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, constants.GenericFallback, out.Response.Text)
	})

	t.Run("provider answer", func(t *testing.T) {
		var prompt string
		gen := generatorFunc(func(_ context.Context, p string) (string, error) {
			prompt = p
			return "I can help with your card.", nil
		})
		p := NewProcessor(Deps{Generator: gen, Sink: response.NewMemoryStore()}, testConsumerConfig, "", logger.NopLogger())
		out := p.Process(context.Background(), routed("m2", models.IntentUnknown, models.TargetGenerativeFallback, "sing me a song", "", nil))
		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, "I can help with your card.", out.Response.Text)
		assert.Contains(t, prompt, "sing me a song")
	})
}

func TestProcess_IdempotentRedelivery(t *testing.T) {
	d, token := newActions(t)
	counting := &countingDispatcher{next: d}
	sink := response.NewMemoryStore()
	idem := idempotency.NewService(idempotency.NewMemoryStore(), config.IdempotencyConfig{}, logger.NopLogger())
	p := NewProcessor(Deps{Actions: counting, Sink: sink, Idempotency: idem}, testConsumerConfig, "", logger.NopLogger())

	params := models.Params{models.ParamCardLast4: "1234"}
	first := p.Process(context.Background(), routed("m1", models.IntentBlockCard, models.TargetActionAPI, "block card 1234", token, params))
	second := p.Process(context.Background(), routed("m1", models.IntentBlockCard, models.TargetActionAPI, "block card 1234", token, params))

	require.Equal(t, StateAcknowledged, first.State)
	require.Equal(t, StateAcknowledged, second.State)
	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, int32(1), counting.calls.Load())
	assert.Equal(t, first.Response.Text, second.Response.Text)
	assert.Contains(t, second.Response.Text, "has been blocked")
	assert.Equal(t, 2, sink.Deliveries())
}

func TestProcess_RedeliveredCountIsSpentBudget(t *testing.T) {
	failing := func(calls *atomic.Int32) ActionDispatcher {
		return dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
			calls.Add(1)
			return nil, errors.ErrServiceUnavailable.AsRetryable()
		})
	}

	t.Run("remaining attempts only", func(t *testing.T) {
		var calls atomic.Int32
		p := NewProcessor(Deps{Actions: failing(&calls), Sink: response.NewMemoryStore()}, testConsumerConfig, "", logger.NopLogger())

		msg := routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil)
		msg.Envelope.AttemptCount = 2
		out := p.Process(context.Background(), msg)

		assert.Equal(t, StateDeadLettered, out.State)
		assert.Equal(t, 1, out.Attempts)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 3, msg.Envelope.AttemptCount)
		assert.True(t, errors.IsRetryExhausted(out.Err))
	})

	t.Run("already at the ceiling", func(t *testing.T) {
		var calls atomic.Int32
		sink := response.NewMemoryStore()
		p := NewProcessor(Deps{Actions: failing(&calls), Sink: sink}, testConsumerConfig, "", logger.NopLogger())

		msg := routed("m2", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil)
		msg.Envelope.AttemptCount = 3
		out := p.Process(context.Background(), msg)

		assert.Equal(t, StateDeadLettered, out.State)
		assert.Zero(t, out.Attempts)
		assert.Zero(t, calls.Load())
		assert.Equal(t, 3, msg.Envelope.AttemptCount)
		assert.True(t, errors.IsRetryExhausted(out.Err))

		got, err := sink.Get(context.Background(), "m2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, constants.ApologyReply, got.Text)
	})

	t.Run("success on the last attempt", func(t *testing.T) {
		p := NewProcessor(Deps{Knowledge: newIndex(t), Sink: response.NewMemoryStore()}, testConsumerConfig, "", logger.NopLogger())

		msg := routed("m3", models.IntentRepaymentQuery, models.TargetKnowledgeBase, "How do I set up autopay?", "", nil)
		msg.Envelope.AttemptCount = 2
		out := p.Process(context.Background(), msg)

		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, 3, msg.Envelope.AttemptCount)
	})
}

func TestProcess_ClaimHeldWaitsForHolder(t *testing.T) {
	store := idempotency.NewMemoryStore()
	ok, err := store.Claim(context.Background(), "m1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	answer := models.Response{MessageID: "m1", UserID: "u1", Text: "No overdue amount.", Status: models.ResponseAnswered}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = store.Complete(context.Background(), idempotency.Record{MessageID: "m1", Response: answer}, time.Minute)
	}()

	var calls atomic.Int32
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		calls.Add(1)
		return &actions.Result{Reply: "dispatched again"}, nil
	})
	sink := response.NewMemoryStore()
	idem := idempotency.NewService(store, config.IdempotencyConfig{ClaimTTL: time.Second, ClaimPoll: 5 * time.Millisecond}, logger.NopLogger())
	p := NewProcessor(Deps{Actions: d, Sink: sink, Idempotency: idem}, testConsumerConfig, "", logger.NopLogger())

	msg := routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil)
	out := p.Process(context.Background(), msg)

	require.Equal(t, StateAcknowledged, out.State)
	assert.True(t, out.Replayed)
	assert.Zero(t, calls.Load())
	assert.Zero(t, msg.Envelope.AttemptCount)
	assert.Equal(t, "No overdue amount.", out.Response.Text)

	got, err := sink.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "No overdue amount.", got.Text)
}

func TestHandle_StuckClaimRequeues(t *testing.T) {
	store := idempotency.NewMemoryStore()
	ok, err := store.Claim(context.Background(), "m1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	sink := response.NewMemoryStore()
	idem := idempotency.NewService(store, config.IdempotencyConfig{ClaimTTL: 20 * time.Millisecond, ClaimPoll: 5 * time.Millisecond}, logger.NopLogger())
	p := NewProcessor(Deps{Actions: dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		return &actions.Result{Reply: "ok"}, nil
	}), Sink: sink, Idempotency: idem}, testConsumerConfig, "", logger.NopLogger())

	msg := routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil)
	err = p.Handle(context.Background(), msg)

	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrRequeue)
	assert.False(t, errors.IsRetryExhausted(err))
	assert.True(t, errors.HasCode(err, idempotency.ErrClaimHeld.Code))
	assert.Zero(t, msg.Envelope.AttemptCount)
	assert.Zero(t, sink.Deliveries())
}

func TestProcess_AbandonedMessageReleasesClaim(t *testing.T) {
	store := idempotency.NewMemoryStore()
	idem := idempotency.NewService(store, config.IdempotencyConfig{}, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		cancel()
		return nil, errors.ErrServiceUnavailable.AsRetryable()
	})
	p := NewProcessor(Deps{Actions: d, Sink: response.NewMemoryStore(), Idempotency: idem}, testConsumerConfig, "", logger.NopLogger())

	out := p.Process(ctx, routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil))
	require.Equal(t, StateFailed, out.State)

	ok, err := store.Claim(context.Background(), "m1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "a redelivery can take the message at once")
}

// flakySink fails the first n deliveries.
type flakySink struct {
	*response.MemoryStore
	failures atomic.Int32
}

func (f *flakySink) Deliver(ctx context.Context, resp models.Response) error {
	if f.failures.Add(-1) >= 0 {
		return errors.ErrServiceUnavailable.AsRetryable()
	}
	return f.MemoryStore.Deliver(ctx, resp)
}

func TestProcess_SinkFailureDoesNotDispatchAgain(t *testing.T) {
	sink := &flakySink{MemoryStore: response.NewMemoryStore()}
	sink.failures.Store(1)

	var calls atomic.Int32
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		calls.Add(1)
		return &actions.Result{Action: actions.ActionBlockCard, Reply: "blocked"}, nil
	})
	idem := idempotency.NewService(idempotency.NewMemoryStore(), config.IdempotencyConfig{}, logger.NopLogger())
	p := NewProcessor(Deps{Actions: d, Sink: sink, Idempotency: idem}, testConsumerConfig, "", logger.NopLogger())

	out := p.Process(context.Background(), routed("m1", models.IntentBlockCard, models.TargetActionAPI, "block 1234", "t", nil))

	require.Equal(t, StateAcknowledged, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "blocked", out.Response.Text)
}

func TestProcess_Reclassify(t *testing.T) {
	cls := classifier.New(nil, config.ClassifierConfig{}, logger.NopLogger())
	cfg := testConsumerConfig
	cfg.Reclassify = true

	t.Run("agreeing result refreshes intent", func(t *testing.T) {
		d := dispatchFunc(func(_ context.Context, intent models.Intent, _ models.Params, _ string) (*actions.Result, error) {
			return &actions.Result{Reply: string(intent)}, nil
		})
		p := NewProcessor(Deps{Classifier: cls, Actions: d, Sink: response.NewMemoryStore()}, cfg, "", logger.NopLogger())
		out := p.Process(context.Background(), routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "where is my card delivery", "t", nil))
		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, string(models.IntentCheckDeliveryStatus), out.Response.Text)
	})

	t.Run("disagreeing result keeps routed intent", func(t *testing.T) {
		d := dispatchFunc(func(_ context.Context, intent models.Intent, _ models.Params, _ string) (*actions.Result, error) {
			return &actions.Result{Reply: string(intent)}, nil
		})
		p := NewProcessor(Deps{Classifier: cls, Actions: d, Sink: response.NewMemoryStore()}, cfg, "", logger.NopLogger())
		out := p.Process(context.Background(), routed("m2", models.IntentCheckDueAmount, models.TargetActionAPI, "hello there", "t", nil))
		require.Equal(t, StateAcknowledged, out.State)
		assert.Equal(t, string(models.IntentCheckDueAmount), out.Response.Text)
	})
}

func TestHandle_DeadLettersThroughBroker(t *testing.T) {
	topology := broker.NewTopology(config.BrokerConfig{})
	b := broker.NewMemoryBroker(topology)
	d := dispatchFunc(func(context.Context, models.Intent, models.Params, string) (*actions.Result, error) {
		return nil, errors.ErrServiceUnavailable.AsRetryable()
	})
	sink := response.NewMemoryStore()
	p := NewProcessor(Deps{Actions: d, Sink: sink}, testConsumerConfig, "", logger.NopLogger())

	msg := routed("m1", models.IntentCheckDueAmount, models.TargetActionAPI, "due", "t", nil)
	require.NoError(t, b.Publish(context.Background(), constants.RoutingKeyAction, *msg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue, _ := topology.QueueFor(constants.RoutingKeyAction)
	go func() { _ = b.Consume(ctx, queue, p.Handle) }()

	require.Eventually(t, func() bool { return b.Len(topology.DeadLetter) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	dead, err := b.Peek(topology.DeadLetter)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.NotNil(t, dead[0].Envelope.Metadata.DeadLetter)
	assert.Equal(t, "retry_exhausted", dead[0].Envelope.Metadata.DeadLetter.Reason)
	assert.Equal(t, 3, dead[0].Envelope.Metadata.DeadLetter.Attempts)
	assert.Eventually(t, func() bool { return b.Acked(queue) == 1 }, time.Second, 5*time.Millisecond)

	got, err := sink.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, constants.ApologyReply, got.Text)
}

func TestEndToEnd_BillQuery(t *testing.T) {
	topology := broker.NewTopology(config.BrokerConfig{})
	b := broker.NewMemoryBroker(topology)
	cls := classifier.New(nil, config.ClassifierConfig{}, logger.NopLogger())
	r := router.New(cls, b, constants.BillTargetAction, logger.NopLogger())

	d, token := newActions(t)
	store := response.NewMemoryStore()
	idem := idempotency.NewService(idempotency.NewMemoryStore(), config.IdempotencyConfig{}, logger.NopLogger())
	p := NewProcessor(Deps{
		Classifier:  cls,
		Knowledge:   newIndex(t),
		Actions:     d,
		Sink:        store,
		Idempotency: idem,
	}, testConsumerConfig, constants.BillTargetAction, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue, _ := topology.QueueFor(constants.RoutingKeyAction)
	go func() { _ = b.Consume(ctx, queue, p.Handle) }()

	env := models.NewMessageEnvelopeBuilder().
		WithUser("u1").
		WithChannel(models.ChannelWeb).
		WithText("What is my bill amount?").
		WithAuthToken(token).
		Build()

	decision, err := r.Route(ctx, env)
	require.NoError(t, err)
	require.True(t, decision.Queued)
	assert.Equal(t, models.TargetActionAPI, decision.DispatchTarget)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	got, err := response.Wait(waitCtx, store, env.MessageID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "INR 15,000.00")
	assert.Equal(t, models.IntentBillQuery, got.Intent)
	assert.Equal(t, actions.ActionGetBill, got.ActionTaken)

	require.Eventually(t, func() bool { return b.Acked(queue) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, b.Len(topology.DeadLetter))
}
