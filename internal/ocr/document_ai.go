package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"nicayne/internal/logger"
)

// DocumentAIConfig identifies a Document OCR processor.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "us" or "eu", defaults to "us"
	ProcessorID string

	// Timeout bounds one ProcessDocument call. Defaults to 60s.
	Timeout time.Duration
}

// DocumentAIEngine sends page PDFs to a Document AI OCR processor. Useful for
// faxed BOLs where Vision drops faint table rows.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	name   string
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIEngine creates the engine. Locations other than "us" use the
// regional endpoint.
func NewDocumentAIEngine(ctx context.Context, config DocumentAIConfig) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	opts, _ := credentialOptions()
	if config.Location != "us" {
		opts = append(opts, option.WithEndpoint(config.Location+"-documentai.googleapis.com:443"))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Document AI client in "+config.Location)
	}

	return &DocumentAIEngine{
		client: client,
		name: fmt.Sprintf("projects/%s/locations/%s/processors/%s",
			config.ProjectID, config.Location, config.ProcessorID),
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Name implements Engine.
func (p *DocumentAIEngine) Name() string { return "documentai" }

// Recognize implements Engine.
func (p *DocumentAIEngine) Recognize(ctx context.Context, pdfData io.Reader) (*OCRResult, error) {
	const op = "Recognize"
	started := time.Now()

	pdfBytes, err := readPDF(op, pdfData, MaxFileSizeBytes)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.ProcessDocument(callCtx, &documentaipb.ProcessRequest{
		Name: p.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: pdfBytes, MimeType: "application/pdf"},
		},
		SkipHumanReview: true,
	})
	if err != nil {
		return nil, WrapOCRError(op, p.classify(err), "ProcessDocument")
	}

	doc := resp.GetDocument()
	if strings.TrimSpace(doc.GetText()) == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, p.config.ProcessorID)
	}

	result := &OCRResult{
		Text:        doc.GetText(),
		Engine:      p.Name(),
		PageCount:   len(doc.GetPages()),
		Confidence:  averagePageConfidence(doc.GetPages()),
		ProcessedAt: time.Now(),
	}
	result.ProcessingDuration = result.ProcessedAt.Sub(started)

	p.log.Debug().
		Int("pages", result.PageCount).
		Int("chars", len(result.Text)).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Document AI OCR completed")
	return result, nil
}

func averagePageConfidence(pages []*documentaipb.Document_Page) float32 {
	if len(pages) == 0 {
		return 0
	}
	var sum float32
	for _, page := range pages {
		sum += page.GetLayout().GetConfidence()
	}
	return sum / float32(len(pages))
}

// classify maps the gRPC status of a failed call onto the package sentinels.
func (p *DocumentAIEngine) classify(err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	case codes.NotFound:
		return fmt.Errorf("%w: processor %s not found", ErrInvalidConfiguration, p.config.ProcessorID)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	case codes.DeadlineExceeded, codes.Canceled:
		return err
	default:
		return fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}
}

// Close closes the Document AI client.
func (p *DocumentAIEngine) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
