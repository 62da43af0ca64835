// Package pipeline runs one BOL PDF through validation, page splitting, text
// extraction, LLM extraction, normalization, backup and the spreadsheet write.
//
// A job moves through these states:
//
//	VALIDATING -> SINGLE_PAGE | MULTI_PAGE -> NORMALIZING -> BACKING_UP
//	  -> WRITING -> VALIDATING_COUNTS -> DONE
//
// The sheet header is migrated during VALIDATING, before any LLM call. ERROR
// is reachable from any step. A rejected sheet write does not fail the job:
// the records stay in the backup and the result carries the WriteFailed kind
// with a count mismatch. Process never returns an error; the outcome,
// including partial page failures and count mismatches, is described by the
// returned models.JobResult.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"nicayne/internal/normalize"
	"nicayne/internal/pdfsplit"
	"nicayne/internal/prompts"
	"nicayne/internal/refiner"
	"nicayne/internal/sheets"
	"nicayne/pkg/models"
	"nicayne/pkg/services"
)

const (
	// DefaultMaxPages caps the pages processed per document.
	DefaultMaxPages = 100

	// DefaultSinglePageThreshold is the page count up to which a document is one unit.
	DefaultSinglePageThreshold = 1

	// DefaultBackupDir is where backup files go when none is configured.
	DefaultBackupDir = "backups"
)

// Splitter validates and splits source PDFs.
type Splitter interface {
	Validate(path string) pdfsplit.Report
	Split(ctx context.Context, path string) (*pdfsplit.Pages, error)
}

// TextExtractor returns the text of a PDF page.
type TextExtractor interface {
	ExtractText(ctx context.Context, pagePath string) (string, error)
}

// CoilExtractor turns page text into raw coil records.
type CoilExtractor interface {
	Extract(ctx context.Context, text, supplier string) (refiner.ExtractionResult, error)
}

// SheetWriter persists normalized records.
type SheetWriter interface {
	EnsureHeaders(ctx context.Context) (sheets.Migration, error)
	AppendBatch(ctx context.Context, recs []models.NormalizedRecord) sheets.BatchResult
}

// Options configures an Orchestrator.
type Options struct {
	BackupDir           string
	MaxPages            int
	SinglePageThreshold int

	// Now is the clock used for backups and PROCESSED_DATE. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs extraction jobs. It holds no per-job state and may be
// shared by concurrent jobs.
type Orchestrator struct {
	splitter  Splitter
	extractor TextExtractor
	refiner   CoilExtractor
	writer    SheetWriter
	flattener *normalize.Flattener
	opts      Options
}

var _ services.ExtractionService = (*Orchestrator)(nil)

// NewOrchestrator creates an orchestrator over its collaborators.
func NewOrchestrator(splitter Splitter, extractor TextExtractor, coils CoilExtractor, writer SheetWriter, opts Options) *Orchestrator {
	if opts.BackupDir == "" {
		opts.BackupDir = DefaultBackupDir
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.SinglePageThreshold <= 0 {
		opts.SinglePageThreshold = DefaultSinglePageThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		splitter:  splitter,
		extractor: extractor,
		refiner:   coils,
		writer:    writer,
		flattener: normalize.NewFlattener().WithClock(opts.Now),
		opts:      opts,
	}
}

// Process runs the job for pdfPath. An empty supplier uses the default profile.
func (o *Orchestrator) Process(ctx context.Context, pdfPath string, supplier string) (result *models.JobResult) {
	if supplier == "" {
		supplier = prompts.DefaultKey
	}
	document := filepath.Base(pdfPath)
	job := newJob(pdfPath, supplier)
	job.log.Info().Str("document", document).Str("supplier", supplier).Msg("Starting extraction job")

	defer func() {
		if r := recover(); r != nil {
			job.log.Error().Interface("panic", r).Msg("Recovered from panic in extraction job")
			job.fail(fmt.Errorf("internal error: %v", r))
		}
		result = job.result(document)
		job.log.Info().
			Bool("success", result.Success).
			Str("state", result.State).
			Int("coils", result.CoilsProcessed).
			Ints("failed_pages", result.FailedPages).
			Str("duration", result.Duration).
			Msg("Extraction job finished")
	}()

	report := o.splitter.Validate(pdfPath)
	if !report.IsValid {
		job.fail(NewJobError("validate", KindInvalidPDF, nil, report.Error))
		return
	}
	job.PageCount = report.PageCount

	if err := o.migrateHeaders(ctx, job); err != nil {
		job.fail(err)
		return
	}

	var raws []models.CoilRecord
	if report.PageCount > o.opts.SinglePageThreshold {
		job.transition(StateMultiPage)
		var err error
		raws, err = o.runMultiPage(ctx, job)
		if err != nil {
			job.fail(err)
			return
		}
	} else {
		job.transition(StateSinglePage)
		page := o.processPage(ctx, job, 1, pdfPath)
		job.pagesProcessed = 1
		if page.Err != nil {
			job.FailedPages = append(job.FailedPages, 1)
			job.fail(page.Err)
			return
		}
		job.PageTexts[1] = page.Text
		raws = page.Records
	}

	if len(raws) == 0 {
		job.fail(NewJobError("extract coils", KindNoDataExtracted, nil, "no coil with a coil tag, heat number or BOL number"))
		return
	}

	job.transition(StateNormalizing)
	if err := o.normalize(job, raws); err != nil {
		job.fail(err)
		return
	}

	job.transition(StateBackingUp)
	path, err := WriteBackup(o.opts.BackupDir, pdfPath, job.Records, o.opts.Now())
	if err != nil {
		job.log.Error().Err(err).Msg("Failed to write backup, continuing with sheet write")
	} else {
		job.BackupPath = path
		job.log.Info().Str("path", path).Int("coils", len(job.Records)).Msg("Backup written")
	}

	job.transition(StateWriting)
	if err := o.write(ctx, job); err != nil {
		job.writeErr = err
		job.log.Error().Err(err).Str("backup", job.BackupPath).Msg("Sheet write failed, records are kept in the backup")
	}

	job.transition(StateValidatingCounts)
	o.validateCounts(job)

	job.transition(StateDone)
	return
}

// runMultiPage splits the document and folds the page results in page order.
func (o *Orchestrator) runMultiPage(ctx context.Context, job *Job) ([]models.CoilRecord, error) {
	pages, err := o.splitter.Split(ctx, job.SourcePath)
	if err != nil {
		return nil, NewJobError("split", KindInvalidPDF, err, "")
	}
	defer func() {
		if err := pages.Cleanup(); err != nil {
			job.log.Warn().Err(err).Str("dir", pages.Dir).Msg("Failed to remove temporary page directory")
		}
	}()

	paths, numbers := pages.Paths, pages.Numbers
	if len(paths) > o.opts.MaxPages {
		job.pagesDropped = len(paths) - o.opts.MaxPages
		job.log.Warn().
			Int("pages", len(paths)).
			Int("max_pages", o.opts.MaxPages).
			Int("dropped", job.pagesDropped).
			Msg("Document exceeds page limit, dropping excess pages")
		paths, numbers = paths[:o.opts.MaxPages], numbers[:o.opts.MaxPages]
	}

	for _, n := range pages.Skipped {
		job.FailedPages = append(job.FailedPages, n)
	}

	var raws []models.CoilRecord
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, NewJobError("process pages", KindExtractionFailed, err, fmt.Sprintf("stopped before page %d", numbers[i]))
		}

		page := o.processPage(ctx, job, numbers[i], path)
		job.pagesProcessed++
		if page.Err != nil {
			job.log.Warn().Err(page.Err).Int("page", page.Page).Msg("Page failed, continuing with remaining pages")
			job.FailedPages = append(job.FailedPages, page.Page)
			continue
		}
		job.PageTexts[page.Page] = page.Text
		raws = append(raws, page.Records...)
	}

	job.log.Info().
		Int("pages", job.pagesProcessed).
		Ints("failed_pages", job.FailedPages).
		Int("coils", len(raws)).
		Msg("Processed all pages")
	return raws, nil
}

func (o *Orchestrator) normalize(job *Job, raws []models.CoilRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewJobError("normalize", KindNormalizationError, fmt.Errorf("%w: %v", ErrNormalization, r), "")
		}
	}()

	job.Records = o.flattener.FlattenAll(raws)
	job.Expected = len(job.Records)

	invalid := 0
	for _, r := range job.Records {
		if r.ValidationStatus == string(models.StatusError) {
			invalid++
		}
	}
	if invalid > 0 {
		job.log.Warn().Int("records", invalid).Msg("Some records failed normalization and are marked ERROR")
	}
	return nil
}

// migrateHeaders brings the sheet header in line with the record schema once,
// before any page reaches the LLM.
func (o *Orchestrator) migrateHeaders(ctx context.Context, job *Job) error {
	migration, err := o.writer.EnsureHeaders(ctx)
	if err != nil {
		return NewJobError("migrate headers", KindWriteFailed, err, "header migration")
	}
	if migration.HeaderReplaced {
		job.log.Info().Str("sheet", migration.Worksheet).Msg("Sheet header updated")
	}
	return nil
}

func (o *Orchestrator) write(ctx context.Context, job *Job) error {
	res := o.writer.AppendBatch(ctx, job.Records)
	if !res.Success {
		return NewJobError("write", KindWriteFailed, fmt.Errorf("%w: %s", ErrWriteFailed, res.Error), "")
	}
	job.Written = res.RowsAdded
	job.Duplicates = res.Duplicates
	job.sheetRow = res.FirstRow
	return nil
}

func (o *Orchestrator) validateCounts(job *Job) {
	if job.Written+job.Duplicates == job.Expected {
		job.log.Info().
			Int("expected", job.Expected).
			Int("written", job.Written).
			Int("duplicates", job.Duplicates).
			Msg("Record counts match")
		return
	}
	job.log.Warn().
		Int("expected", job.Expected).
		Int("written", job.Written).
		Int("duplicates", job.Duplicates).
		Int("missing", job.Expected-job.Written-job.Duplicates).
		Msg("Record count mismatch between extraction and sheet write")
}
