package refiner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider calls Google's Gemini models.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiProvider creates a Gemini provider at temperature 0.
func NewGeminiProvider(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0)
	if maxTokens > 0 {
		m.SetMaxOutputTokens(int32(maxTokens))
	}

	return &GeminiProvider{client: client, model: m}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Complete sends the system instructions and prompt as one text part.
func (p *GeminiProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	const op = "GeminiProvider.Complete"

	resp, err := p.model.GenerateContent(ctx, genai.Text(system+"\n\n"+prompt))
	if err != nil {
		return "", fmt.Errorf("%s: Gemini API error: %w", op, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%s: %w: no candidates from Gemini", op, ErrEmptyResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%s: %w: gemini", op, ErrEmptyResponse)
	}
	return b.String(), nil
}

// Close releases the Gemini client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
