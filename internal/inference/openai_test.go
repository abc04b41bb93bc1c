package inference

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

	"cardassist/internal/config"
	"cardassist/pkg/circuitbreaker"
	"cardassist/pkg/errors"
)

func completionServer(t *testing.T, status int, content string, delay time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": content},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testClient(url string) *OpenAIClient {
	return NewOpenAIClient(config.InferenceConfig{
		Provider: "openai",
		BaseURL:  url,
		APIKey:   "test-key",
		Model:    "test-model",
	})
}

func TestOpenAIClient_ClassifyHint(t *testing.T) {
	srv, calls := completionServer(t, http.StatusOK, ` {"intent":"BLOCK_CARD","confidence":0.93} `, 0)

	out, err := testClient(srv.URL).ClassifyHint(context.Background(), "please block my card")
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"BLOCK_CARD","confidence":0.93}`, out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_Infer(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, "Your card ships in 5 days.", 0)

	out, err := testClient(srv.URL).Infer(context.Background(), "when will my card arrive")
	require.NoError(t, err)
	assert.Equal(t, "Your card ships in 5 days.", out)
}

func TestOpenAIClient_ProviderErrors(t *testing.T) {
	srv, _ := completionServer(t, http.StatusInternalServerError, "", 0)
	client := testClient(srv.URL)

	_, err := client.ClassifyHint(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errors.IsClassificationProvider(err))

	_, err = client.Infer(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrServiceUnavailable.Code))
	assert.True(t, errors.Retryable(err))
}

func TestOpenAIClient_EmptyCompletion(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, "   ", 0)

	_, err := testClient(srv.URL).Infer(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAIClient_DeadlineBecomesDispatchTimeout(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, "late", 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL).Infer(ctx, "hi")
	require.Error(t, err)
	assert.True(t, errors.IsDispatchTimeout(err))
}

type failingClient struct{ calls atomic.Int32 }

func (f *failingClient) Infer(context.Context, string) (string, error) {
	f.calls.Add(1)
	return "", errors.ErrServiceUnavailable.AsRetryable()
}

func (f *failingClient) ClassifyHint(context.Context, string) (string, error) {
	f.calls.Add(1)
	return "", errors.ErrClassificationProvider
}

func TestBreakerClient_OpensAfterFailures(t *testing.T) {
	inner := &failingClient{}
	client := NewBreakerClient(inner, circuitbreaker.Config{Name: "inference-test", MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2})

	for i := 0; i < 2; i++ {
		_, err := client.ClassifyHint(context.Background(), "hi")
		require.Error(t, err)
	}
	require.True(t, client.IsOpen())

	_, err := client.ClassifyHint(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errors.IsClassificationProvider(err))
	assert.Equal(t, int32(2), inner.calls.Load(), "open breaker must not reach the provider")
}

func TestNew_SelectsProvider(t *testing.T) {
	client := New(config.InferenceConfig{}, config.CircuitBreakerConfig{})
	_, err := client.ClassifyHint(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)

	client = New(config.InferenceConfig{Provider: "openai", APIKey: "k"}, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	})
	_, ok := client.(*BreakerClient)
	assert.True(t, ok)
}
