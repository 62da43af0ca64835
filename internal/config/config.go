package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nicayne/internal/logger"
)

type Config struct {
	// LLM Configuration
	OpenAIAPIKey     string
	OpenAIModel      string
	FallbackProvider string
	GeminiAPIKey     string
	GeminiModel      string
	DeepSeekAPIKey   string
	DeepSeekBaseURL  string
	DeepSeekModel    string
	LLMTimeout       time.Duration
	LLMMaxTokens     int

	// OCR Configuration
	OCREngine             string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string
	OCRTimeout            time.Duration

	// Spreadsheet Configuration
	SheetsBackend           string
	GoogleServiceAccountKey string
	GoogleSheetURL          string
	GoogleSheetWorksheet    string
	XLSXPath                string
	SheetsDedup             bool
	SheetsTimeout           time.Duration

	// Pipeline Configuration
	PromptStore         string
	BackupDir           string
	TempDir             string
	MaxPages            int
	SinglePageThreshold int
	MaxFileSizeMB       int
	BatchWorkers        int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:             getEnv("OPENAI_MODEL", "gpt-4o"),
		FallbackProvider:        strings.ToLower(getEnv("FALLBACK_PROVIDER", "gemini")),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		DeepSeekAPIKey:          getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL:         getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:           getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		LLMTimeout:              time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		LLMMaxTokens:            getEnvInt("LLM_MAX_TOKENS", 1500),
		OCREngine:               strings.ToLower(getEnv("OCR_ENGINE", "vision")),
		GoogleCloudProject:      getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:     getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:   getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OCRTimeout:              time.Duration(getEnvInt("OCR_TIMEOUT_SECONDS", 30)) * time.Second,
		SheetsBackend:           strings.ToLower(getEnv("SHEETS_BACKEND", "google")),
		GoogleServiceAccountKey: getEnv("GOOGLE_SERVICE_ACCOUNT_KEY", ""),
		GoogleSheetURL:          getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:    getEnv("GOOGLE_SHEET_WORKSHEET", "UNPROCESSED_INVENTORY"),
		XLSXPath:                getEnv("XLSX_PATH", "nicayne_inventory.xlsx"),
		SheetsDedup:             getEnvBool("SHEETS_DEDUP", false),
		SheetsTimeout:           time.Duration(getEnvInt("SHEETS_TIMEOUT_SECONDS", 30)) * time.Second,
		PromptStore:             getEnv("PROMPT_STORE", "supplier_prompts.json"),
		BackupDir:               getEnv("BACKUP_DIR", "backups"),
		TempDir:                 getEnv("TEMP_DIR", ""),
		MaxPages:                getEnvInt("MAX_PAGES", 100),
		SinglePageThreshold:     getEnvInt("SINGLE_PAGE_THRESHOLD", 1),
		MaxFileSizeMB:           getEnvInt("MAX_FILE_SIZE_MB", 16),
		BatchWorkers:            getEnvInt("BATCH_WORKERS", 0),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:           getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:               getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.FallbackProvider {
	case "gemini", "deepseek", "none":
	default:
		return fmt.Errorf("FALLBACK_PROVIDER must be gemini, deepseek or none, got %q", c.FallbackProvider)
	}
	switch c.OCREngine {
	case "vision", "documentai", "none":
	default:
		return fmt.Errorf("OCR_ENGINE must be vision, documentai or none, got %q", c.OCREngine)
	}
	switch c.SheetsBackend {
	case "google", "xlsx":
	default:
		return fmt.Errorf("SHEETS_BACKEND must be google or xlsx, got %q", c.SheetsBackend)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive")
	}
	if c.SinglePageThreshold <= 0 {
		return fmt.Errorf("SINGLE_PAGE_THRESHOLD must be positive")
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive")
	}
	if c.LLMTimeout <= 0 || c.SheetsTimeout <= 0 || c.OCRTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS, SHEETS_TIMEOUT_SECONDS and OCR_TIMEOUT_SECONDS must be positive")
	}
	if c.BatchWorkers < 0 {
		return fmt.Errorf("BATCH_WORKERS must not be negative")
	}
	return nil
}

// ValidateForProcessing checks the settings a full extraction job needs.
func (c *Config) ValidateForProcessing() error {
	if c.OpenAIAPIKey == "" && c.fallbackKey() == "" {
		return fmt.Errorf("OPENAI_API_KEY or a fallback provider key is required")
	}
	if c.SheetsBackend == "google" && c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required when SHEETS_BACKEND=google")
	}
	if c.OCREngine == "documentai" && (c.GoogleCloudProject == "" || c.DocumentAIProcessorID == "") {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required when OCR_ENGINE=documentai")
	}
	return nil
}

func (c *Config) fallbackKey() string {
	switch c.FallbackProvider {
	case "gemini":
		return c.GeminiAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	}
	return ""
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}
