package refiner

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Provider completes a prompt with a language model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIProvider calls a chat completion endpoint. It serves OpenAI and any
// OpenAI-compatible API such as DeepSeek.
type OpenAIProvider struct {
	client    *openai.Client
	name      string
	model     string
	maxTokens int
	jsonMode  bool
}

// NewOpenAIProvider creates the primary provider with JSON object responses.
func NewOpenAIProvider(apiKey, model string, maxTokens int) *OpenAIProvider {
	return &OpenAIProvider{
		client:    openai.NewClient(apiKey),
		name:      "openai",
		model:     model,
		maxTokens: maxTokens,
		jsonMode:  true,
	}
}

// NewDeepSeekProvider creates a provider for DeepSeek's OpenAI-compatible API.
func NewDeepSeekProvider(apiKey, baseURL, model string, maxTokens int) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		name:      "deepseek",
		model:     model,
		maxTokens: maxTokens,
	}
}

// NewOpenAIProviderWithClient wraps an existing client.
func NewOpenAIProviderWithClient(client *openai.Client, name, model string, maxTokens int, jsonMode bool) *OpenAIProvider {
	return &OpenAIProvider{
		client:    client,
		name:      name,
		model:     model,
		maxTokens: maxTokens,
		jsonMode:  jsonMode,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// zeroTemperature is the smallest value go-openai serializes. A literal 0 is
// dropped by omitempty and the API then samples at its default of 1.
const zeroTemperature = math.SmallestNonzeroFloat32

// Complete sends the system and user prompt at an effective temperature of 0.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	const op = "OpenAIProvider.Complete"

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: zeroTemperature,
		MaxTokens:   p.maxTokens,
	}
	if p.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %s request failed: %w", op, p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: no choices from %s", op, ErrEmptyResponse, p.name)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: %w: %s", op, ErrEmptyResponse, p.name)
	}
	return content, nil
}
