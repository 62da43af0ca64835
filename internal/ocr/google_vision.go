package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

const (
	// MaxFileSizeBytes is the inline request limit of the OCR services.
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is how many pages BatchAnnotateFiles reads from one inline file.
	MaxPagesSync = 5
)

// VisionEngine runs Cloud Vision DOCUMENT_TEXT_DETECTION on page PDFs. The
// service rasterizes the PDF itself, so pages are sent as they come out of
// the splitter.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine creates the engine from the credentials in the environment,
// falling back to application default credentials.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	opts, explicit := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if !explicit {
			return nil, WrapOCRError(op, ErrMissingCredentials, err.Error())
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}
	return &VisionEngine{client: client}, nil
}

// Name implements Engine.
func (g *VisionEngine) Name() string { return "vision" }

// Recognize implements Engine.
func (g *VisionEngine) Recognize(ctx context.Context, pdfData io.Reader) (*OCRResult, error) {
	const op = "Recognize"
	started := time.Now()

	pdfBytes, err := readPDF(op, pdfData, MaxFileSizeBytes)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, visionRequest(pdfBytes))
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "empty Vision response")
	}
	file := resp.Responses[0]
	if file.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, file.Error.Message)
	}

	result, err := collectVisionText(file)
	if err != nil {
		return nil, WrapOCRError(op, err, "unusable Vision response")
	}
	result.Engine = g.Name()
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(started)
	return result, nil
}

func visionRequest(pdfBytes []byte) *visionpb.BatchAnnotateFilesRequest {
	return &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{Content: pdfBytes, MimeType: "application/pdf"},
			Features:    []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
}

// collectVisionText joins the page annotations in order. Pages without an
// annotation are blank scans and contribute nothing.
func collectVisionText(file *visionpb.AnnotateFileResponse) (*OCRResult, error) {
	if len(file.Responses) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(file.Responses) > MaxPagesSync {
		return nil, fmt.Errorf("%w: got %d pages", ErrTooManyPages, len(file.Responses))
	}

	texts := make([]string, 0, len(file.Responses))
	var confidence float32
	var scored int
	for i, page := range file.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("page %d: %s", i+1, page.Error.Message)
		}
		annotation := page.FullTextAnnotation
		if annotation == nil || strings.TrimSpace(annotation.Text) == "" {
			continue
		}
		texts = append(texts, annotation.Text)
		for _, p := range annotation.Pages {
			if p.Confidence > 0 {
				confidence += p.Confidence
				scored++
			}
		}
	}
	if len(texts) == 0 {
		return nil, ErrEmptyDocument
	}

	result := &OCRResult{
		Text:      strings.Join(texts, "\n\n"),
		PageCount: len(file.Responses),
	}
	if scored > 0 {
		result.Confidence = confidence / float32(scored)
	}
	return result, nil
}

// Close closes the Vision client.
func (g *VisionEngine) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// readPDF reads a page PDF, enforcing maxSize and the %PDF header.
func readPDF(op string, pdfData io.Reader, maxSize int) ([]byte, error) {
	pdfBytes, err := io.ReadAll(io.LimitReader(pdfData, int64(maxSize)+1))
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read PDF data")
	}
	if len(pdfBytes) > maxSize {
		return nil, WrapOCRError(op, ErrPDFTooLarge, fmt.Sprintf("more than %d bytes", maxSize))
	}
	if !strings.HasPrefix(string(pdfBytes[:min(len(pdfBytes), 5)]), "%PDF") {
		return nil, WrapOCRError(op, ErrInvalidPDF, "missing PDF header")
	}
	return pdfBytes, nil
}
