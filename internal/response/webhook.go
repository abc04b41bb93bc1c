package response

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
)

// WebhookSink posts replies as JSON to a per-channel URL. Channels without a
// URL are skipped.
type WebhookSink struct {
	client *http.Client
	urls   map[models.Channel]string
}

func NewWebhookSink(urls map[string]string) *WebhookSink {
	byChannel := make(map[models.Channel]string, len(urls))
	for ch, url := range urls {
		byChannel[models.Channel(ch)] = url
	}
	return &WebhookSink{
		client: &http.Client{Timeout: constants.DefaultHTTPTimeout},
		urls:   byChannel,
	}
}

func (w *WebhookSink) Handles(ch models.Channel) bool {
	_, ok := w.urls[ch]
	return ok
}

func (w *WebhookSink) Deliver(ctx context.Context, resp models.Response) error {
	url, ok := w.urls[resp.Channel]
	if !ok {
		return nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Message-ID", resp.MessageID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	httpResp, err := w.client.Do(req)
	if err != nil {
		return errors.ErrServiceUnavailable.AsRetryable().WithCause(fmt.Errorf("webhook request failed: %w", err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < constants.HTTPStatusOKMin || httpResp.StatusCode >= constants.HTTPStatusOKMax {
		cause := fmt.Errorf("webhook returned status: %d", httpResp.StatusCode)
		if httpResp.StatusCode >= http.StatusInternalServerError || httpResp.StatusCode == http.StatusTooManyRequests {
			return errors.ErrServiceUnavailable.AsRetryable().WithCause(cause)
		}
		return errors.ErrValidation.WithCause(cause)
	}
	return nil
}

// ChannelSink stores every reply and also pushes it to the channel webhook
// when one is configured.
type ChannelSink struct {
	store   Store
	webhook *WebhookSink
	log     logger.Logger
}

func NewChannelSink(store Store, webhook *WebhookSink, log logger.Logger) *ChannelSink {
	return &ChannelSink{store: store, webhook: webhook, log: log}
}

func (s *ChannelSink) Deliver(ctx context.Context, resp models.Response) error {
	if err := s.store.Deliver(ctx, resp); err != nil {
		metrics.IncResponseDelivered("store", "error")
		return errors.ErrServiceUnavailable.AsRetryable().WithCause(err)
	}
	metrics.IncResponseDelivered("store", "success")

	if s.webhook == nil || !s.webhook.Handles(resp.Channel) {
		return nil
	}
	if err := s.webhook.Deliver(ctx, resp); err != nil {
		metrics.IncResponseDelivered("webhook", "error")
		s.log.WarnwCtx(ctx, "Webhook delivery failed", "channel", resp.Channel, "error", err)
		return err
	}
	metrics.IncResponseDelivered("webhook", "success")
	return nil
}
