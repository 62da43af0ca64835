package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"nicayne/internal/config"
	"nicayne/internal/ocr"
	"nicayne/internal/pdfsplit"
	"nicayne/internal/pipeline"
	"nicayne/internal/prompts"
	"nicayne/internal/refiner"
	"nicayne/internal/sheets"
)

// cleanup collects Close functions of the services a command created.
type cleanup []func() error

func (c *cleanup) add(fn func() error) { *c = append(*c, fn) }

func (c cleanup) run(log zerolog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close service")
		}
	}
}

// openPromptStore opens PROMPT_STORE and seeds the default profile on first use.
func openPromptStore(ctx context.Context, cfg *config.Config, closers *cleanup) (*prompts.Store, error) {
	repo, err := prompts.OpenRepository(cfg.PromptStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt store %s: %w", cfg.PromptStore, err)
	}
	if c, ok := repo.(io.Closer); ok {
		closers.add(c.Close)
	}

	store := prompts.NewStore(repo)
	if err := store.Seed(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed prompt store: %w", err)
	}
	return store, nil
}

// newOCREngine returns the configured engine, or nil for OCR_ENGINE=none.
// An engine that cannot be created leaves extraction on the text layer only.
func newOCREngine(ctx context.Context, cfg *config.Config, closers *cleanup, log zerolog.Logger) ocr.Engine {
	switch cfg.OCREngine {
	case "vision":
		engine, err := ocr.NewVisionEngine(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Cloud Vision unavailable, continuing with text layer only")
			return nil
		}
		closers.add(engine.Close)
		return engine
	case "documentai":
		engine, err := ocr.NewDocumentAIEngine(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Document AI unavailable, continuing with text layer only")
			return nil
		}
		closers.add(engine.Close)
		return engine
	default:
		log.Info().Msg("OCR disabled, using text layer only")
		return nil
	}
}

func newExtractor(ctx context.Context, cfg *config.Config, closers *cleanup, log zerolog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(newOCREngine(ctx, cfg, closers, log)).
		WithTimeout(cfg.OCRTimeout).
		WithSplitter(pdfsplit.NewSplitter(cfg.TempDir, cfg.MaxFileSizeBytes()))
}

// newProviders returns OpenAI first, then the configured fallback.
func newProviders(ctx context.Context, cfg *config.Config, closers *cleanup, log zerolog.Logger) ([]refiner.Provider, error) {
	var providers []refiner.Provider

	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, refiner.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMMaxTokens))
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, using fallback provider only")
	}

	switch cfg.FallbackProvider {
	case "gemini":
		if cfg.GeminiAPIKey != "" {
			p, err := refiner.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMMaxTokens)
			if err != nil {
				return nil, err
			}
			closers.add(p.Close)
			providers = append(providers, p)
		}
	case "deepseek":
		if cfg.DeepSeekAPIKey != "" {
			providers = append(providers, refiner.NewDeepSeekProvider(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel, cfg.LLMMaxTokens))
		}
	}

	if len(providers) == 0 {
		return nil, refiner.ErrNoProviders
	}
	return providers, nil
}

// newSheetBackend returns the Google Sheets or XLSX backend.
func newSheetBackend(ctx context.Context, cfg *config.Config) (sheets.Backend, error) {
	if cfg.SheetsBackend == "xlsx" {
		return sheets.NewXLSXBackend(cfg.XLSXPath), nil
	}

	creds, err := sheets.LoadCredentials(cfg.GoogleServiceAccountKey)
	if err != nil {
		return nil, err
	}
	return sheets.NewGoogleBackend(ctx, cfg.GoogleSheetURL, creds)
}

func newSheetWriter(ctx context.Context, cfg *config.Config) (*sheets.Writer, error) {
	backend, err := newSheetBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sheets.NewWriter(backend, sheets.Options{
		Worksheet: cfg.GoogleSheetWorksheet,
		Dedup:     cfg.SheetsDedup,
		Timeout:   cfg.SheetsTimeout,
	}), nil
}

// newOrchestrator wires every pipeline stage from cfg.
func newOrchestrator(ctx context.Context, cfg *config.Config, closers *cleanup, log zerolog.Logger) (*pipeline.Orchestrator, error) {
	store, err := openPromptStore(ctx, cfg, closers)
	if err != nil {
		return nil, err
	}

	providers, err := newProviders(ctx, cfg, closers, log)
	if err != nil {
		return nil, err
	}

	writer, err := newSheetWriter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	coilRefiner := refiner.NewRefiner(store, cfg.LLMTimeout, providers...)
	log.Debug().Strs("providers", coilRefiner.Providers()).Msg("LLM providers configured")

	return pipeline.NewOrchestrator(
		pdfsplit.NewSplitter(cfg.TempDir, cfg.MaxFileSizeBytes()),
		newExtractor(ctx, cfg, closers, log),
		coilRefiner,
		writer,
		pipeline.Options{
			BackupDir:           cfg.BackupDir,
			MaxPages:            cfg.MaxPages,
			SinglePageThreshold: cfg.SinglePageThreshold,
		},
	), nil
}
