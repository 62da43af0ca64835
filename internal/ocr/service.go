// Package ocr turns single-page BOL PDFs into text.
//
// The embedded text layer is read first. When it is missing or too short,
// as with scanned or faxed BOLs, the page goes to an OCR Engine. Both
// engines accept the page PDF as is:
//   - VisionEngine: Cloud Vision BatchAnnotateFiles
//   - DocumentAIEngine: a Document AI OCR processor
//
// Credentials come from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path).
package ocr

import (
	"context"
	"io"
	"time"
)

// Engine recognizes text in a PDF.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, pdfData io.Reader) (*OCRResult, error)
}

// OCRResult is an engine's output for one PDF.
type OCRResult struct {
	Text      string `json:"text"`
	Engine    string `json:"engine"`
	PageCount int    `json:"page_count"`

	// Confidence averages the per-page confidence reported by the engine, 0 when none was reported.
	Confidence float32 `json:"confidence"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
