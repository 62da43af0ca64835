package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nicayne/internal/config"
	"nicayne/internal/ocr"
	"nicayne/internal/pipeline"
	"nicayne/internal/prompts"
	"nicayne/internal/refiner"
	"nicayne/internal/sheets"
	"nicayne/pkg/models"
)

// loadConfig reads the environment configuration.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createContextWithTimeout creates a context with timeout and signal handling.
// A timeout of zero or less only cancels on signals.
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeoutSecs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// validatePDFFile checks that the file exists, is a regular non-empty file
// and is within maxSize bytes.
func validatePDFFile(pdfPath string, maxSize int64, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", pdfPath).Msg("PDF file not found")
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", pdfPath).Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", pdfPath).Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().Str("file", pdfPath).Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", pdfPath).Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	if maxSize > 0 && fileInfo.Size() > maxSize {
		log.Error().
			Str("file", pdfPath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", maxSize).
			Msg("PDF file exceeds maximum size limit")
		return nil, fmt.Errorf("PDF file too large (%d bytes). Maximum size is %d bytes (MAX_FILE_SIZE_MB)",
			fileInfo.Size(), maxSize)
	}

	return fileInfo, nil
}

// findPDFFiles returns the PDF files in folder, walking subfolders when recursive is set.
func findPDFFiles(folder string, recursive bool) ([]string, error) {
	var pdfFiles []string

	err := filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != folder && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".pdf") {
			pdfFiles = append(pdfFiles, path)
		}
		return nil
	})

	return pdfFiles, err
}

// workerCount returns BATCH_WORKERS, or the CPU count capped at 4.
func workerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// handleSetupError provides user-friendly messages for service construction failures.
func handleSetupError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Failed to set up services")

	switch {
	case errors.Is(err, sheets.ErrMissingCredentials):
		return fmt.Errorf("Google Sheets credentials not configured. Set GOOGLE_SERVICE_ACCOUNT_KEY " +
			"(inline JSON or path), GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS, " +
			"or use SHEETS_BACKEND=xlsx to write a local workbook")
	case errors.Is(err, sheets.ErrInvalidSheetURL):
		return fmt.Errorf("GOOGLE_SHEET_URL is not a Google Sheets URL or spreadsheet ID")
	case errors.Is(err, refiner.ErrNoProviders):
		return fmt.Errorf("no LLM provider configured. Set OPENAI_API_KEY, or GEMINI_API_KEY / DEEPSEEK_API_KEY with FALLBACK_PROVIDER")
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured for OCR. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS, or OCR_ENGINE=none")
	case errors.Is(err, ocr.ErrInvalidConfiguration):
		return fmt.Errorf("OCR engine misconfigured: %w", err)
	default:
		return err
	}
}

// handleJobError turns a failed job result into a user-facing error.
func handleJobError(res *models.JobResult) error {
	switch pipeline.ErrorKind(res.ErrorKind) {
	case pipeline.KindInvalidPDF:
		return fmt.Errorf("%s is not a valid PDF: %s", res.Document, res.Error)
	case pipeline.KindNoTextExtracted:
		return fmt.Errorf("no text could be read from %s. The scan may be blank or OCR is disabled", res.Document)
	case pipeline.KindExtractionFailed:
		return fmt.Errorf("all LLM providers failed for %s: %s", res.Document, res.Error)
	case pipeline.KindNoDataExtracted:
		return fmt.Errorf("no coils with a coil tag, heat number or BOL number were found in %s", res.Document)
	case pipeline.KindWriteFailed:
		if res.BackupPath != "" {
			return fmt.Errorf("sheet write failed for %s (data saved to %s): %s", res.Document, res.BackupPath, res.Error)
		}
		return fmt.Errorf("sheet write failed for %s: %s", res.Document, res.Error)
	case pipeline.KindNormalizationError:
		return fmt.Errorf("records from %s could not be normalized: %s", res.Document, res.Error)
	default:
		return fmt.Errorf("processing %s failed: %s", res.Document, res.Error)
	}
}

// handlePromptError maps prompt store errors to messages.
func handlePromptError(err error, supplier string) error {
	switch {
	case errors.Is(err, prompts.ErrProfileNotFound):
		return fmt.Errorf("no prompt profile for supplier %q", supplier)
	case errors.Is(err, prompts.ErrProfileExists):
		return fmt.Errorf("supplier %q already has a prompt profile, use 'prompts update'", supplier)
	case errors.Is(err, prompts.ErrDefaultProtected):
		return fmt.Errorf("the default profile cannot be removed")
	case errors.Is(err, prompts.ErrInvalidKey):
		return fmt.Errorf("invalid supplier name %q", supplier)
	case errors.Is(err, prompts.ErrEmptyPrompt):
		return fmt.Errorf("prompt text must not be empty")
	default:
		return err
	}
}

// marshalJSON returns indented JSON.
func marshalJSON(v interface{}, log zerolog.Logger) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return nil, fmt.Errorf("failed to create JSON output: %w", err)
	}
	return append(data, '\n'), nil
}

// writeOutput writes data to outputPath, or stdout when it is empty.
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}
