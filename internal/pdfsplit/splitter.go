// Package pdfsplit validates BOL PDFs and splits them into single-page files.
//
// Page counting, encryption detection and page extraction use pdfcpu in
// relaxed validation mode, which tolerates the slightly broken PDFs produced
// by fax gateways and scanner software. The text-layer probe samples only the
// first pages of a document.
package pdfsplit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"nicayne/internal/logger"
	"nicayne/internal/pdftext"
)

const (
	// TextSamplePages is how many leading pages Validate inspects for a text layer.
	TextSamplePages = 3

	// minSampleText is the stripped length a sampled page needs to count as text.
	minSampleText = 10
)

var (
	// ErrInvalidPDF is returned for unreadable or zero-page documents.
	ErrInvalidPDF = errors.New("invalid or unreadable PDF")

	// ErrEncrypted is returned when the document requires a password.
	ErrEncrypted = errors.New("PDF is password protected")

	// ErrTooLarge is returned when the file exceeds the configured size limit.
	ErrTooLarge = errors.New("PDF exceeds the maximum file size")
)

func init() {
	// No user fonts or config files are needed for splitting.
	api.DisableConfigDir()
}

// Report is the result of a pre-flight check.
type Report struct {
	IsValid     bool   `json:"is_valid"`
	PageCount   int    `json:"page_count"`
	FileSize    int64  `json:"file_size"`
	IsEncrypted bool   `json:"is_encrypted"`
	HasText     bool   `json:"has_text"`
	Error       string `json:"error,omitempty"`
}

// Pages holds the single-page files of one split. The directory belongs to one job.
type Pages struct {
	Dir string

	// Paths are the page files in page order.
	Paths []string

	// Numbers maps each entry of Paths to its 1-based page number in the source.
	Numbers []int

	// Skipped lists 1-based page numbers that could not be extracted.
	Skipped []int

	once sync.Once
	err  error
}

// Cleanup removes the page directory. It is safe to call more than once.
func (p *Pages) Cleanup() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		if p.Dir != "" {
			p.err = os.RemoveAll(p.Dir)
		}
	})
	return p.err
}

// Splitter validates and splits PDF files.
type Splitter struct {
	tempRoot    string
	maxFileSize int64
	log         zerolog.Logger
}

// NewSplitter creates a splitter writing page files below tempRoot (os.TempDir when empty).
// maxFileSize <= 0 disables the size check.
func NewSplitter(tempRoot string, maxFileSize int64) *Splitter {
	return &Splitter{
		tempRoot:    tempRoot,
		maxFileSize: maxFileSize,
		log:         logger.WithComponent("pdfsplit"),
	}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// readContext parses the document and resolves its page count.
func readContext(path string) (*model.Context, error) {
	const op = "readContext"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	ctx, err := api.ReadContext(f, newConfiguration())
	if err != nil {
		if isPasswordError(err) {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidPDF, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidPDF, err)
	}
	return ctx, nil
}

func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

// PageCount returns the number of pages in the document.
func (s *Splitter) PageCount(path string) (int, error) {
	ctx, err := readContext(path)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

// ShouldSplit reports whether the document has more than maxPages pages.
func (s *Splitter) ShouldSplit(path string, maxPages int) (bool, error) {
	n, err := s.PageCount(path)
	if err != nil {
		return false, err
	}
	return n > maxPages, nil
}

// Validate runs the pre-flight check. Failures are reported in the Report, never returned.
func (s *Splitter) Validate(path string) Report {
	var report Report

	info, err := os.Stat(path)
	if err != nil {
		report.Error = "file does not exist"
		return report
	}
	report.FileSize = info.Size()

	if s.maxFileSize > 0 && report.FileSize > s.maxFileSize {
		report.Error = fmt.Sprintf("%v: %d bytes (limit %d)", ErrTooLarge, report.FileSize, s.maxFileSize)
		return report
	}

	ctx, err := readContext(path)
	if err != nil {
		report.IsEncrypted = errors.Is(err, ErrEncrypted)
		report.Error = err.Error()
		s.log.Warn().Err(err).Str("file", path).Msg("PDF validation failed")
		return report
	}

	report.PageCount = ctx.PageCount
	report.IsEncrypted = ctx.Encrypt != nil
	if report.PageCount == 0 {
		report.Error = "PDF contains no pages"
		return report
	}

	report.HasText = s.sampleHasText(path)
	report.IsValid = true

	s.log.Debug().
		Str("file", path).
		Int("pages", report.PageCount).
		Int64("size", report.FileSize).
		Bool("encrypted", report.IsEncrypted).
		Bool("has_text", report.HasText).
		Msg("PDF validated")

	return report
}

func (s *Splitter) sampleHasText(path string) bool {
	texts, err := pdftext.Pages(path, TextSamplePages)
	if err != nil {
		s.log.Debug().Err(err).Str("file", path).Msg("Text layer probe failed")
		return false
	}
	for _, text := range texts {
		if len(strings.TrimSpace(text)) > minSampleText {
			return true
		}
	}
	return false
}

// Split writes each page of path to its own PDF in a fresh temporary directory.
// A page that fails to extract is logged and listed in Pages.Skipped. When no
// page at all can be written the directory is removed and ErrInvalidPDF returned.
func (s *Splitter) Split(ctx context.Context, path string) (*Pages, error) {
	const op = "Split"

	pdfCtx, err := readContext(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pdfCtx.PageCount == 0 {
		return nil, fmt.Errorf("%s: %w: document has no pages", op, ErrInvalidPDF)
	}

	dir, err := os.MkdirTemp(s.tempRoot, "bol_split_")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create temp directory: %w", op, err)
	}
	pages := &Pages{Dir: dir}

	src, err := os.Open(path)
	if err != nil {
		pages.Cleanup()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer src.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	s.log.Info().
		Str("file", path).
		Int("pages", pdfCtx.PageCount).
		Str("dir", dir).
		Msg("Splitting PDF")

	for page := 1; page <= pdfCtx.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			pages.Cleanup()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		pagePath := filepath.Join(dir, fmt.Sprintf("%s_page_%d.pdf", stem, page))
		if err := writePage(src, pagePath, page); err != nil {
			s.log.Error().Err(err).Int("page", page).Msg("Failed to extract page, skipping")
			pages.Skipped = append(pages.Skipped, page)
			continue
		}
		pages.Paths = append(pages.Paths, pagePath)
		pages.Numbers = append(pages.Numbers, page)
	}

	if len(pages.Paths) == 0 {
		pages.Cleanup()
		return nil, fmt.Errorf("%s: %w: no page could be extracted", op, ErrInvalidPDF)
	}

	s.log.Info().
		Int("written", len(pages.Paths)).
		Ints("skipped", pages.Skipped).
		Msg("PDF split completed")

	return pages, nil
}

func writePage(src *os.File, dst string, page int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic on page %d: %v", page, r)
		}
	}()

	if _, err := src.Seek(0, 0); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := api.Trim(src, out, []string{fmt.Sprint(page)}, newConfiguration()); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
