// Package refiner turns BOL text into coil records with a language model.
package refiner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nicayne/internal/logger"
)

// SystemPrompt frames every extraction call.
const SystemPrompt = "Extract coil-level data from the following BOL text and return one row per coil. " +
	"Format as JSON with 'coils' array. Only include coils with valid customer tags."

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 30 * time.Second

// PromptBuilder renders the user prompt for a document and supplier.
type PromptBuilder interface {
	BuildExtractionPrompt(ctx context.Context, rawText, supplier string) (string, error)
}

// Refiner calls providers in order until one returns a parseable reply.
type Refiner struct {
	prompts   PromptBuilder
	providers []Provider
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefiner creates a refiner. Providers are tried in the given order; nil entries are skipped.
func NewRefiner(prompts PromptBuilder, timeout time.Duration, providers ...Provider) *Refiner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var ps []Provider
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &Refiner{
		prompts:   prompts,
		providers: ps,
		timeout:   timeout,
		log:       logger.WithComponent("llm-refiner"),
	}
}

// Providers returns the provider names in call order.
func (r *Refiner) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Extract builds the supplier prompt for text and returns the first provider
// reply that parses and matches the coil schema.
func (r *Refiner) Extract(ctx context.Context, text, supplier string) (ExtractionResult, error) {
	const op = "Extract"

	if len(r.providers) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoProviders)
	}

	prompt, err := r.prompts.BuildExtractionPrompt(ctx, text, supplier)
	if err != nil {
		return nil, fmt.Errorf("%s: building prompt: %w", op, err)
	}

	var lastErr error
	for _, p := range r.providers {
		result, err := r.try(ctx, p, prompt)
		if err == nil {
			r.log.Info().
				Str("provider", p.Name()).
				Int("coils", len(result.Records())).
				Msg("LLM extraction succeeded")
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		r.log.Warn().Err(err).Str("provider", p.Name()).Msg("LLM provider failed, trying next")
		lastErr = err
	}

	return nil, fmt.Errorf("%s: %w: %v", op, ErrExtractionFailed, lastErr)
}

func (r *Refiner) try(ctx context.Context, p Provider, prompt string) (ExtractionResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	raw, err := p.Complete(callCtx, SystemPrompt, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s timed out after %s: %w", p.Name(), r.timeout, err)
		}
		return nil, err
	}

	r.log.Debug().
		Str("provider", p.Name()).
		Dur("duration", time.Since(started)).
		Str("response", raw).
		Msg("Received LLM response")

	result, err := Parse(raw)
	if err != nil {
		r.log.Warn().Err(err).Str("provider", p.Name()).Str("response", raw).Msg("Failed to parse LLM response")
		return nil, err
	}
	return result, nil
}
