package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/models"
)

func sampleResponse(channel models.Channel) models.Response {
	return models.Response{
		MessageID: "m1",
		UserID:    "u1",
		Channel:   channel,
		Text:      "hello",
		Intent:    models.IntentGreeting,
		Status:    models.ResponseAnswered,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Deliver(ctx, sampleResponse(models.ChannelWeb)))
	got, err = store.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, 1, store.Deliveries())
}

func TestWait(t *testing.T) {
	store := NewMemoryStore()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = store.Deliver(context.Background(), sampleResponse(models.ChannelWeb))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := Wait(ctx, store, "m1", 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.MessageID)
}

func TestWait_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	got, err := Wait(ctx, NewMemoryStore(), "missing", 5*time.Millisecond)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebhookSink(t *testing.T) {
	var received atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp models.Response
		if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received.Store(resp)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(map[string]string{"whatsapp": srv.URL})

	require.NoError(t, sink.Deliver(context.Background(), sampleResponse(models.ChannelWhatsApp)))
	got, ok := received.Load().(models.Response)
	require.True(t, ok)
	assert.Equal(t, "m1", got.MessageID)

	assert.NoError(t, sink.Deliver(context.Background(), sampleResponse(models.ChannelWeb)), "unconfigured channel is skipped")
}

func TestWebhookSink_ErrorClassification(t *testing.T) {
	status := int32(http.StatusBadGateway)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	defer srv.Close()

	sink := NewWebhookSink(map[string]string{"rcs": srv.URL})

	err := sink.Deliver(context.Background(), sampleResponse(models.ChannelRCS))
	require.Error(t, err)
	assert.True(t, errors.Retryable(err))

	atomic.StoreInt32(&status, http.StatusBadRequest)
	err = sink.Deliver(context.Background(), sampleResponse(models.ChannelRCS))
	require.Error(t, err)
	assert.False(t, errors.Retryable(err))
}

func TestChannelSink_StoresAndPushes(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewMemoryStore()
	sink := NewChannelSink(store, NewWebhookSink(map[string]string{"whatsapp": srv.URL}), logger.NopLogger())

	require.NoError(t, sink.Deliver(context.Background(), sampleResponse(models.ChannelWhatsApp)))
	assert.Equal(t, int32(1), hits.Load())

	got, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	sink = NewChannelSink(NewMemoryStore(), nil, logger.NopLogger())
	assert.NoError(t, sink.Deliver(context.Background(), sampleResponse(models.ChannelWeb)))
}
