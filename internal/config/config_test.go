package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "FALLBACK_PROVIDER", "OCR_ENGINE", "SHEETS_BACKEND",
		"MAX_PAGES", "GOOGLE_SHEET_WORKSHEET", "LLM_TIMEOUT_SECONDS", "MAX_FILE_SIZE_MB",
		"OCR_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, "gemini", cfg.FallbackProvider)
	assert.Equal(t, "vision", cfg.OCREngine)
	assert.Equal(t, "google", cfg.SheetsBackend)
	assert.Equal(t, "UNPROCESSED_INVENTORY", cfg.GoogleSheetWorksheet)
	assert.Equal(t, 100, cfg.MaxPages)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
	assert.Equal(t, int64(16*1024*1024), cfg.MaxFileSizeBytes())
}

func TestLoadRejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"FALLBACK_PROVIDER", "claude"},
		{"OCR_ENGINE", "tesseract"},
		{"SHEETS_BACKEND", "csv"},
		{"MAX_PAGES", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("MAX_PAGES", "lots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxPages)
}

func TestValidateForProcessing(t *testing.T) {
	cfg := &Config{FallbackProvider: "gemini", SheetsBackend: "google", OCREngine: "vision"}
	assert.Error(t, cfg.ValidateForProcessing())

	cfg.GeminiAPIKey = "key"
	assert.Error(t, cfg.ValidateForProcessing(), "sheet URL still missing")

	cfg.GoogleSheetURL = "https://docs.google.com/spreadsheets/d/abc123/edit"
	assert.NoError(t, cfg.ValidateForProcessing())

	cfg.SheetsBackend = "xlsx"
	cfg.GoogleSheetURL = ""
	assert.NoError(t, cfg.ValidateForProcessing())

	cfg.OCREngine = "documentai"
	assert.Error(t, cfg.ValidateForProcessing())
}

func TestGetLoggerConfig(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "json", LogTimeFormat: time.RFC3339, LogOutput: "stderr"}
	lc := cfg.GetLoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "stderr", lc.Output)
}

func TestLoadOCRTimeout(t *testing.T) {
	t.Setenv("OCR_TIMEOUT_SECONDS", "5")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.OCRTimeout)

	t.Setenv("OCR_TIMEOUT_SECONDS", "-1")
	_, err = Load()
	assert.ErrorContains(t, err, "OCR_TIMEOUT_SECONDS")
}
