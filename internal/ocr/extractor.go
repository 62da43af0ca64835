package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"nicayne/internal/logger"
	"nicayne/internal/pdfsplit"
	"nicayne/internal/pdftext"
)

const (
	// MinDirectTextLength is the stripped length above which the text layer is trusted.
	MinDirectTextLength = 100

	// MinOCRTextLength is the stripped length above which OCR output is trusted.
	MinOCRTextLength = 50

	// DefaultTimeout bounds a single Recognize call.
	DefaultTimeout = 30 * time.Second
)

// Source names the tier that produced a page's text.
type Source string

const (
	SourceTextLayer Source = "text_layer"
	SourceOCR       Source = "ocr"
)

// TextLayerFunc reads the embedded text of a PDF.
type TextLayerFunc func(path string) (string, error)

// Result is the text of one page and where it came from.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Engine string `json:"engine,omitempty"`
}

// PageSplitter writes each page of a PDF to its own file.
type PageSplitter interface {
	Split(ctx context.Context, path string) (*pdfsplit.Pages, error)
}

// Extractor reads page text from the PDF text layer and falls back to OCR.
type Extractor struct {
	engine    Engine
	textLayer TextLayerFunc
	splitter  PageSplitter
	timeout   time.Duration
	log       zerolog.Logger
}

// NewExtractor creates an extractor. A nil engine disables the OCR tier.
func NewExtractor(engine Engine) *Extractor {
	return NewExtractorWithTextLayer(engine, pdftext.Document)
}

// NewExtractorWithTextLayer creates an extractor with an explicit text layer reader.
func NewExtractorWithTextLayer(engine Engine, textLayer TextLayerFunc) *Extractor {
	if textLayer == nil {
		textLayer = pdftext.Document
	}
	return &Extractor{
		engine:    engine,
		textLayer: textLayer,
		splitter:  pdfsplit.NewSplitter("", 0),
		timeout:   DefaultTimeout,
		log:       logger.WithComponent("text-extractor"),
	}
}

// WithTimeout sets the per-call OCR timeout. d <= 0 leaves calls bounded only
// by the caller's context.
func (e *Extractor) WithTimeout(d time.Duration) *Extractor {
	e.timeout = d
	return e
}

// WithSplitter sets how ExtractDocument splits a document for per-page OCR.
func (e *Extractor) WithSplitter(s PageSplitter) *Extractor {
	if s != nil {
		e.splitter = s
	}
	return e
}

// ExtractText returns the text of a single-page PDF.
func (e *Extractor) ExtractText(ctx context.Context, pagePath string) (string, error) {
	res, err := e.Extract(ctx, pagePath)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Extract runs the two extraction tiers and reports which one was used.
func (e *Extractor) Extract(ctx context.Context, pagePath string) (*Result, error) {
	const op = "Extract"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	direct, err := e.textLayer(pagePath)
	if err != nil {
		e.log.Debug().Err(err).Str("page", pagePath).Msg("Text layer unreadable")
		direct = ""
	}
	directLen := strippedLen(direct)
	if directLen > MinDirectTextLength {
		e.log.Debug().Str("page", pagePath).Int("chars", directLen).Msg("Using text layer")
		return &Result{Text: direct, Source: SourceTextLayer}, nil
	}

	var ocrText string
	if e.engine != nil {
		ocrText, err = e.recognize(ctx, pagePath)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			e.log.Warn().Err(err).Str("page", pagePath).Str("engine", e.engine.Name()).Msg("OCR failed")
		}
	}
	ocrLen := strippedLen(ocrText)
	if ocrLen > MinOCRTextLength {
		e.log.Debug().Str("page", pagePath).Int("chars", ocrLen).Msg("Using OCR text")
		return &Result{Text: ocrText, Source: SourceOCR, Engine: e.engine.Name()}, nil
	}

	switch {
	case ocrLen > 0 && ocrLen >= directLen:
		return &Result{Text: ocrText, Source: SourceOCR, Engine: e.engine.Name()}, nil
	case directLen > 0:
		return &Result{Text: direct, Source: SourceTextLayer}, nil
	default:
		return nil, WrapOCRError(op, ErrNoTextExtracted, pagePath)
	}
}

func (e *Extractor) recognize(ctx context.Context, pagePath string) (string, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := e.engine.Recognize(ctx, f)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
		}
		return "", err
	}
	return res.Text, nil
}

// ExtractDocument extracts every page of pdfPath through the text layer and
// returns the concatenated text. When the text layer is too short the
// document is split and each page goes through Extract, so OCR sees one page
// per call.
func (e *Extractor) ExtractDocument(ctx context.Context, pdfPath string) (*Result, error) {
	const op = "ExtractDocument"

	pages, err := pdftext.Pages(pdfPath, 0)
	if err != nil {
		e.log.Debug().Err(err).Msg("Text layer unreadable, trying OCR")
	}

	texts := make(map[int]string, len(pages))
	for i, p := range pages {
		texts[i+1] = p
	}
	direct := joinPages(texts)
	if strippedLen(direct) > MinDirectTextLength || e.engine == nil {
		if strippedLen(direct) == 0 {
			return nil, WrapOCRError(op, ErrNoTextExtracted, pdfPath)
		}
		return &Result{Text: direct, Source: SourceTextLayer}, nil
	}

	res, err := e.extractPages(ctx, pdfPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapOCRError(op, ctx.Err(), pdfPath)
		}
		e.log.Warn().Err(err).Str("file", pdfPath).Msg("Per-page OCR failed")
		if strippedLen(direct) > 0 {
			return &Result{Text: direct, Source: SourceTextLayer}, nil
		}
		return nil, WrapOCRError(op, err, pdfPath)
	}
	return res, nil
}

// extractPages splits pdfPath and runs Extract on every page.
func (e *Extractor) extractPages(ctx context.Context, pdfPath string) (*Result, error) {
	split, err := e.splitter.Split(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := split.Cleanup(); err != nil {
			e.log.Warn().Err(err).Str("dir", split.Dir).Msg("Failed to remove temporary page files")
		}
	}()

	texts := make(map[int]string, len(split.Paths))
	source := SourceTextLayer
	for i, path := range split.Paths {
		res, err := e.Extract(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.Warn().Err(err).Int("page", split.Numbers[i]).Msg("No text on page")
			continue
		}
		if res.Source == SourceOCR {
			source = SourceOCR
		}
		texts[split.Numbers[i]] = res.Text
	}

	text := joinPages(texts)
	if strippedLen(text) == 0 {
		return nil, ErrNoTextExtracted
	}
	res := &Result{Text: text, Source: source}
	if source == SourceOCR {
		res.Engine = e.engine.Name()
	}
	return res, nil
}

// joinPages concatenates non-blank pages in page order under page markers.
func joinPages(texts map[int]string) string {
	numbers := make([]int, 0, len(texts))
	for n, text := range texts {
		if strings.TrimSpace(text) != "" {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)

	var b strings.Builder
	for _, n := range numbers {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", n, texts[n])
	}
	return b.String()
}

func strippedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
