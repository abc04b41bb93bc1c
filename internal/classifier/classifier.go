// Package classifier maps message text onto the closed Intent set. An
// inference hint is tried first; the keyword rules answer whenever the hint is
// unavailable, malformed or unsure.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/inference"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
)

// Classifier holds only immutable settings and is safe for concurrent use.
type Classifier struct {
	client         inference.Client
	timeout        time.Duration
	ruleConfidence float64
	minConfidence  float64
	log            logger.Logger
}

func New(client inference.Client, cfg config.ClassifierConfig, log logger.Logger) *Classifier {
	if client == nil {
		client = inference.Disabled{}
	}
	c := &Classifier{
		client:         client,
		timeout:        cfg.Timeout,
		ruleConfidence: cfg.RuleConfidence,
		minConfidence:  cfg.MinConfidence,
		log:            log,
	}
	if c.timeout <= 0 {
		c.timeout = constants.DefaultInferenceTimeout
	}
	if c.ruleConfidence <= 0 || c.ruleConfidence > 1 {
		c.ruleConfidence = constants.DefaultRuleConfidence
	}
	if c.minConfidence < 0 || c.minConfidence > 1 {
		c.minConfidence = constants.DefaultMinLLMConfidence
	}
	return c
}

// Classify always resolves to exactly one intent.
func (c *Classifier) Classify(ctx context.Context, text string) models.ClassificationResult {
	start := time.Now()
	extracted := extractParams(text)

	result, err := c.classifyWithProvider(ctx, text)
	if err == nil {
		result.ExtractedParams = mergeParams(result.ExtractedParams, extracted)
		c.observe(result, start)
		return result
	}

	reason := "provider_error"
	if errors.HasCode(err, errLowConfidence.Code) {
		reason = "low_confidence"
	} else if errors.HasCode(err, inference.ErrNotConfigured.Code) {
		reason = "not_configured"
	} else {
		c.log.DebugwCtx(ctx, "Classification provider unavailable, using rules", "error", err)
	}
	metrics.FallbackUsageTotal.WithLabelValues("classifier", string(models.SourceRuleFallback), reason).Inc()

	result = models.ClassificationResult{
		Intent:          matchRules(text),
		Confidence:      c.ruleConfidence,
		Source:          models.SourceRuleFallback,
		ExtractedParams: extracted,
	}
	c.observe(result, start)
	return result
}

var errLowConfidence = errors.NewError("LOW_CONFIDENCE", "classification below confidence threshold", http.StatusUnprocessableEntity)

type hint struct {
	Intent     string                 `json:"intent"`
	Confidence *float64               `json:"confidence"`
	Params     map[string]interface{} `json:"params"`
}

func (c *Classifier) classifyWithProvider(ctx context.Context, text string) (models.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.ClassifyHint(ctx, buildPrompt(text))
	if err != nil {
		return models.ClassificationResult{}, err
	}

	parsed, err := parseHint(raw)
	if err != nil {
		return models.ClassificationResult{}, errors.ErrClassificationProvider.WithCause(err)
	}
	if *parsed.Confidence < c.minConfidence {
		return models.ClassificationResult{}, errLowConfidence.WithDetail("confidence", *parsed.Confidence)
	}

	intent, _ := models.ParseIntent(parsed.Intent)
	return models.ClassificationResult{
		Intent:          intent,
		Confidence:      *parsed.Confidence,
		Source:          models.SourceLLM,
		ExtractedParams: models.Params(parsed.Params),
	}, nil
}

func parseHint(raw string) (*hint, error) {
	body := stripCodeFence(raw)

	var h hint
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		return nil, fmt.Errorf("malformed classification output: %w", err)
	}
	if _, ok := models.ParseIntent(h.Intent); !ok {
		return nil, fmt.Errorf("unknown intent label %q", h.Intent)
	}
	if h.Confidence == nil {
		return nil, fmt.Errorf("confidence missing")
	}
	if *h.Confidence < 0 || *h.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range", *h.Confidence)
	}
	return &h, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

func buildPrompt(text string) string {
	labels := make([]string, 0, len(models.AllIntents()))
	for _, intent := range models.AllIntents() {
		labels = append(labels, string(intent))
	}

	var b strings.Builder
	b.WriteString("Classify the credit card customer message into exactly one intent from: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString(".\nExtract these parameters when present: card_last4, amount, month, transaction_id, tenure_months.\n")
	b.WriteString(`Respond only with JSON: {"intent": "INTENT_NAME", "confidence": 0.0-1.0, "params": {}}`)
	b.WriteString("\n\nMessage: ")
	b.WriteString(text)
	return b.String()
}

func (c *Classifier) observe(result models.ClassificationResult, start time.Time) {
	metrics.IncClassification(string(result.Intent), string(result.Source))
	metrics.ObserveClassificationDuration(string(result.Source), time.Since(start))
}
