package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/pkg/errors"
)

const assistantPersona = "You are a helpful credit card customer support assistant. " +
	"Answer briefly and politely. Never invent account numbers, balances or dates. " +
	"If you cannot help, suggest contacting customer support."

const classifierInstructions = "You classify credit card customer messages. " +
	"Reply with a single JSON object and nothing else."

// OpenAIClient works against any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client            *openai.Client
	model             string
	classifyMaxTokens int
	generateMaxTokens int
}

func NewOpenAIClient(cfg config.InferenceConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = constants.DefaultOpenAIModel
	}
	classifyTokens := cfg.ClassifyMaxTokens
	if classifyTokens <= 0 {
		classifyTokens = constants.DefaultClassifyMaxTokens
	}
	generateTokens := cfg.GenerateMaxTokens
	if generateTokens <= 0 {
		generateTokens = constants.DefaultGenerateMaxTokens
	}

	return &OpenAIClient{
		client:            openai.NewClientWithConfig(clientConfig),
		model:             model,
		classifyMaxTokens: classifyTokens,
		generateMaxTokens: generateTokens,
	}
}

func (c *OpenAIClient) Infer(ctx context.Context, prompt string) (string, error) {
	out, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.generateMaxTokens,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistantPersona},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", translate(err, errors.ErrServiceUnavailable.AsRetryable())
	}
	return out, nil
}

func (c *OpenAIClient) ClassifyHint(ctx context.Context, prompt string) (string, error) {
	out, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.classifyMaxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierInstructions},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", translate(err, errors.ErrClassificationProvider)
	}
	return out, nil
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
