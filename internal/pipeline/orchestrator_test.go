package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nicayne/internal/ocr"
	"nicayne/internal/pdfsplit"
	"nicayne/internal/pipeline"
	"nicayne/internal/refiner"
	"nicayne/internal/sheets"
	"nicayne/pkg/models"
)

var fixedNow = time.Date(2025, 6, 1, 14, 5, 9, 0, time.UTC)

// fakeSplitter reports a valid document of n pages and writes empty page files.
type fakeSplitter struct {
	root    string
	pages   int
	skipped []int
	report  *pdfsplit.Report
	lastDir string
}

func (s *fakeSplitter) Validate(path string) pdfsplit.Report {
	if s.report != nil {
		return *s.report
	}
	return pdfsplit.Report{IsValid: true, PageCount: s.pages, HasText: true}
}

func (s *fakeSplitter) Split(ctx context.Context, path string) (*pdfsplit.Pages, error) {
	dir, err := os.MkdirTemp(s.root, "split-")
	if err != nil {
		return nil, err
	}
	s.lastDir = dir
	pages := &pdfsplit.Pages{Dir: dir, Skipped: s.skipped}
	skipped := map[int]bool{}
	for _, n := range s.skipped {
		skipped[n] = true
	}
	for n := 1; n <= s.pages; n++ {
		if skipped[n] {
			continue
		}
		p := filepath.Join(dir, fmt.Sprintf("page_%d.pdf", n))
		if err := os.WriteFile(p, []byte("%PDF-1.4"), 0644); err != nil {
			return nil, err
		}
		pages.Paths = append(pages.Paths, p)
		pages.Numbers = append(pages.Numbers, n)
	}
	return pages, nil
}

// fakeExtractor returns "text for <file>" unless the file is listed in fail.
type fakeExtractor struct {
	fail map[string]bool
}

func (e *fakeExtractor) ExtractText(ctx context.Context, pagePath string) (string, error) {
	base := filepath.Base(pagePath)
	if e.fail[base] {
		return "", ocr.WrapOCRError("Extract", ocr.ErrNoTextExtracted, pagePath)
	}
	return "BILL OF LADING\n" + strings.TrimSuffix(base, ".pdf"), nil
}

// fakeCoils returns one coil per page, tagged after the page text.
type fakeCoils struct {
	mu    sync.Mutex
	fn    func(text string) (refiner.ExtractionResult, error)
	calls int
}

func (c *fakeCoils) Extract(ctx context.Context, text, supplier string) (refiner.ExtractionResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fn != nil {
		return c.fn(text)
	}
	lines := strings.Split(text, "\n")
	tag := strings.ToUpper(lines[len(lines)-1])
	return refiner.CoilList{{
		models.FieldBOLNumber:    "1641211",
		models.FieldCustomerName: "acme steel",
		models.FieldCoilTag:      "ct-" + tag,
		models.FieldWeight:       "2,500 lbs",
	}}, nil
}

type fakeWriter struct {
	backupDir      string
	backupsAtWrite int
	result         *sheets.BatchResult
	headerErr      error
	written        []models.NormalizedRecord
	calls          int
	headerCalls    int
	panicOnWrite   string
}

func (w *fakeWriter) EnsureHeaders(ctx context.Context) (sheets.Migration, error) {
	w.headerCalls++
	return sheets.Migration{Worksheet: "UNPROCESSED_INVENTORY"}, w.headerErr
}

func (w *fakeWriter) AppendBatch(ctx context.Context, recs []models.NormalizedRecord) sheets.BatchResult {
	w.calls++
	if w.panicOnWrite != "" {
		panic(w.panicOnWrite)
	}
	if w.backupDir != "" {
		matches, _ := filepath.Glob(filepath.Join(w.backupDir, "coil_data_backup_*.json"))
		w.backupsAtWrite = len(matches)
	}
	if w.result != nil {
		return *w.result
	}
	w.written = append(w.written, recs...)
	return sheets.BatchResult{Success: true, RowsAdded: len(recs), FirstRow: 2}
}

type fixture struct {
	splitter  *fakeSplitter
	extractor *fakeExtractor
	coils     *fakeCoils
	writer    *fakeWriter
	backupDir string
	opts      pipeline.Options
}

func newFixture(t *testing.T, pages int) *fixture {
	t.Helper()
	backupDir := filepath.Join(t.TempDir(), "backups")
	return &fixture{
		splitter:  &fakeSplitter{root: t.TempDir(), pages: pages},
		extractor: &fakeExtractor{fail: map[string]bool{}},
		coils:     &fakeCoils{},
		writer:    &fakeWriter{backupDir: backupDir},
		backupDir: backupDir,
		opts:      pipeline.Options{BackupDir: backupDir, Now: func() time.Time { return fixedNow }},
	}
}

func (f *fixture) run(t *testing.T, path string) *models.JobResult {
	t.Helper()
	o := pipeline.NewOrchestrator(f.splitter, f.extractor, f.coils, f.writer, f.opts)
	return o.Process(context.Background(), path, "acme")
}

func TestProcessMultiPagePartialFailure(t *testing.T) {
	f := newFixture(t, 5)
	f.extractor.fail["page_3.pdf"] = true

	res := f.run(t, "/in/shipment.pdf")

	assert.True(t, res.Success, res.Error)
	assert.Equal(t, string(pipeline.StateDone), res.State)
	assert.Equal(t, []int{3}, res.FailedPages)
	assert.Equal(t, 5, res.PagesProcessed)
	assert.Equal(t, 4, res.CoilsProcessed)
	assert.Equal(t, "acme", res.Supplier)
	assert.Equal(t, "shipment.pdf", res.Document)
	assert.NotEmpty(t, res.JobID)

	tags := make([]string, 0, len(res.Data))
	for _, r := range res.Data {
		tags = append(tags, r.CoilTag)
	}
	assert.Equal(t, []string{"CT-PAGE_1", "CT-PAGE_2", "CT-PAGE_4", "CT-PAGE_5"}, tags)

	require.NotNil(t, res.CountValidation)
	assert.Equal(t, models.CountValidation{Expected: 4, Written: 4, Match: true}, *res.CountValidation)
	assert.NoDirExists(t, f.splitter.lastDir, "temporary pages removed")
}

func TestProcessSinglePageSkipsSplit(t *testing.T) {
	f := newFixture(t, 1)

	res := f.run(t, "/in/bol.pdf")

	require.True(t, res.Success, res.Error)
	assert.Empty(t, f.splitter.lastDir, "single page documents are not split")
	assert.Equal(t, 1, res.PagesProcessed)
	assert.Empty(t, res.FailedPages)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "CT-BOL", res.Data[0].CoilTag)
	assert.Equal(t, "2500 lbs", res.Data[0].Weight)
	assert.Equal(t, 2, res.SheetRow)
}

func TestBackupWrittenBeforeSheetWrite(t *testing.T) {
	f := newFixture(t, 2)

	res := f.run(t, "/in/shipment.pdf")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, f.writer.backupsAtWrite)
	assert.True(t, res.BackupCreated)
	assert.Equal(t, filepath.Join(f.backupDir, "coil_data_backup_shipment_20250601_140509.json"), res.BackupPath)

	b, err := pipeline.ReadBackup(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "shipment.pdf", b.DocumentName)
	assert.Equal(t, 2, b.CoilCount)
	assert.Equal(t, res.Data, b.Coils)
	assert.Equal(t, "2025-06-01T14:05:09.000000", b.Timestamp)
}

func TestProcessNoStrongIdentifiers(t *testing.T) {
	f := newFixture(t, 3)
	f.coils.fn = func(text string) (refiner.ExtractionResult, error) {
		return refiner.CoilList{
			{models.FieldCoilTag: "Unknown", models.FieldHeatNumber: "None", models.FieldBOLNumber: "0", models.FieldWeight: "100"},
			{models.FieldCustomerName: "Acme"},
		}, nil
	}

	res := f.run(t, "/in/shipment.pdf")

	assert.False(t, res.Success)
	assert.Equal(t, string(pipeline.StateError), res.State)
	assert.Equal(t, string(pipeline.KindNoDataExtracted), res.ErrorKind)
	assert.Zero(t, res.CoilsProcessed)
	assert.Zero(t, f.writer.calls, "nothing is written")
	assert.False(t, res.BackupCreated)
	require.NotNil(t, res.CountValidation)
	assert.Equal(t, models.CountValidation{}, *res.CountValidation)
}

func TestProcessInvalidPDF(t *testing.T) {
	f := newFixture(t, 0)
	f.splitter.report = &pdfsplit.Report{Error: "file does not exist"}

	res := f.run(t, "/in/missing.pdf")

	assert.False(t, res.Success)
	assert.Equal(t, string(pipeline.KindInvalidPDF), res.ErrorKind)
	assert.Contains(t, res.Error, "file does not exist")
	assert.Zero(t, f.coils.calls)
	assert.Zero(t, f.writer.headerCalls)
	require.NotNil(t, res.CountValidation)
	assert.False(t, res.CountValidation.Match)
}

func TestJobResultJSONAlwaysHasCountValidation(t *testing.T) {
	f := newFixture(t, 1)
	f.extractor.fail["bol.pdf"] = true

	res := f.run(t, "/in/bol.pdf")
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{"expected": 0.0, "written": 0.0, "duplicates": 0.0, "match": false}, body["count_validation"])
}

func TestProcessSinglePageExtractionFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.coils.fn = func(string) (refiner.ExtractionResult, error) {
		return nil, fmt.Errorf("Extract: %w: 503", refiner.ErrExtractionFailed)
	}

	res := f.run(t, "/in/bol.pdf")

	assert.False(t, res.Success)
	assert.Equal(t, string(pipeline.KindExtractionFailed), res.ErrorKind)
	assert.Equal(t, []int{1}, res.FailedPages)
	require.NotNil(t, res.CountValidation)
	assert.False(t, res.CountValidation.Match)
}

func TestProcessSinglePageNoText(t *testing.T) {
	f := newFixture(t, 1)
	f.extractor.fail["bol.pdf"] = true

	res := f.run(t, "/in/bol.pdf")

	assert.False(t, res.Success)
	assert.Equal(t, string(pipeline.KindNoTextExtracted), res.ErrorKind)
}

func TestProcessWriteFailedKeepsBackupAndCounts(t *testing.T) {
	f := newFixture(t, 2)
	f.writer.result = &sheets.BatchResult{Error: "quota exceeded"}

	res := f.run(t, "/in/shipment.pdf")

	assert.True(t, res.Success, "a rejected write is reported, not fatal")
	assert.Equal(t, string(pipeline.StateDone), res.State)
	assert.Equal(t, string(pipeline.KindWriteFailed), res.ErrorKind)
	assert.Contains(t, res.Error, "quota exceeded")
	assert.Equal(t, 2, res.CoilsProcessed)
	assert.True(t, res.BackupCreated)
	assert.FileExists(t, res.BackupPath)
	require.NotNil(t, res.CountValidation)
	assert.Equal(t, models.CountValidation{Expected: 2, Written: 0, Match: false}, *res.CountValidation)
}

func TestProcessHeaderMigrationFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.writer.headerErr = errors.New("permission denied")

	res := f.run(t, "/in/bol.pdf")

	assert.False(t, res.Success)
	assert.Equal(t, string(pipeline.KindWriteFailed), res.ErrorKind)
	assert.Contains(t, res.Error, "header migration")
	assert.Zero(t, f.coils.calls, "no LLM call after a failed migration")
	assert.Zero(t, f.writer.calls)
	assert.False(t, res.BackupCreated)
}

func TestProcessMigratesHeadersOncePerJob(t *testing.T) {
	f := newFixture(t, 3)

	res := f.run(t, "/in/shipment.pdf")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, f.writer.headerCalls)
	assert.Equal(t, 1, f.writer.calls)
}

func TestProcessCountsDuplicates(t *testing.T) {
	f := newFixture(t, 3)
	f.writer.result = &sheets.BatchResult{Success: true, RowsAdded: 1, Duplicates: 2, FirstRow: 10}

	res := f.run(t, "/in/shipment.pdf")

	require.True(t, res.Success)
	assert.Equal(t, models.CountValidation{Expected: 3, Written: 1, Duplicates: 2, Match: true}, *res.CountValidation)
	assert.Equal(t, 10, res.SheetRow)
}

func TestProcessShortWriteIsReportedNotFailed(t *testing.T) {
	f := newFixture(t, 3)
	f.writer.result = &sheets.BatchResult{Success: true, RowsAdded: 2, FirstRow: 5}

	res := f.run(t, "/in/shipment.pdf")

	assert.True(t, res.Success)
	assert.False(t, res.CountValidation.Match)
	assert.Equal(t, 3, res.CountValidation.Expected)
	assert.Equal(t, 2, res.CountValidation.Written)
}

func TestProcessCapsPages(t *testing.T) {
	f := newFixture(t, 4)
	f.opts.MaxPages = 2

	res := f.run(t, "/in/shipment.pdf")

	require.True(t, res.Success)
	assert.Equal(t, 2, res.PagesProcessed)
	assert.Equal(t, 2, res.PagesDropped)
	assert.Equal(t, 2, res.CoilsProcessed)
}

func TestProcessSplitSkippedPagesAreFailed(t *testing.T) {
	f := newFixture(t, 3)
	f.splitter.skipped = []int{2}

	res := f.run(t, "/in/shipment.pdf")

	require.True(t, res.Success)
	assert.Equal(t, []int{2}, res.FailedPages)
	assert.Equal(t, 2, res.CoilsProcessed)
}

func TestProcessPagePanicFailsOnlyThatPage(t *testing.T) {
	f := newFixture(t, 5)
	f.coils.fn = func(text string) (refiner.ExtractionResult, error) {
		if strings.HasSuffix(text, "page_3") {
			var seen map[string]bool
			seen[text] = true
		}
		lines := strings.Split(text, "\n")
		return refiner.CoilList{{models.FieldCoilTag: "ct-" + lines[len(lines)-1]}}, nil
	}

	res := f.run(t, "/in/shipment.pdf")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []int{3}, res.FailedPages)
	assert.Equal(t, 5, res.PagesProcessed)
	assert.Equal(t, 4, res.CoilsProcessed)
	for _, r := range res.Data {
		assert.NotEqual(t, "CT-PAGE_3", r.CoilTag)
	}
	assert.NoDirExists(t, f.splitter.lastDir)
}

func TestProcessSinglePagePanic(t *testing.T) {
	f := newFixture(t, 1)
	f.coils.fn = func(string) (refiner.ExtractionResult, error) {
		panic("boom")
	}

	res := f.run(t, "/in/bol.pdf")

	assert.False(t, res.Success)
	assert.Equal(t, string(pipeline.KindExtractionFailed), res.ErrorKind)
	assert.Contains(t, res.Error, "boom")
	assert.Equal(t, []int{1}, res.FailedPages)
}

func TestProcessRecoversJobPanic(t *testing.T) {
	f := newFixture(t, 2)
	f.writer.panicOnWrite = "boom"

	res := f.run(t, "/in/shipment.pdf")

	assert.False(t, res.Success)
	assert.Equal(t, string(pipeline.StateError), res.State)
	assert.Contains(t, res.Error, "boom")
	assert.True(t, res.BackupCreated)
	assert.NoDirExists(t, f.splitter.lastDir, "temporary pages removed after panic")
}

func TestProcessDefaultsSupplier(t *testing.T) {
	f := newFixture(t, 1)
	o := pipeline.NewOrchestrator(f.splitter, f.extractor, f.coils, f.writer, f.opts)

	res := o.Process(context.Background(), "/in/bol.pdf", "")
	assert.Equal(t, "default", res.Supplier)
}

func TestProcessWithXLSXWriter(t *testing.T) {
	f := newFixture(t, 1)
	f.coils.fn = func(string) (refiner.ExtractionResult, error) {
		return refiner.SingleRecord{
			models.FieldBOLNumber:     "1641211",
			models.FieldCustomerName:  "acme steel",
			models.FieldVendorName:    "nucor corp",
			models.FieldCoilTag:       "ct-001",
			models.FieldMaterial:      "hot rolled steel",
			models.FieldWidth:         `48"`,
			models.FieldWeight:        "2,500 lbs",
			models.FieldDateReceived:  "06/01/2025",
			models.FieldHeatNumber:    "h 88123",
			models.FieldNumberOfCoils: 1.0,
		}, nil
	}
	backend := sheets.NewXLSXBackend(filepath.Join(t.TempDir(), "inventory.xlsx"))
	writer := sheets.NewWriter(backend, sheets.Options{Worksheet: "UNPROCESSED_INVENTORY", Dedup: true})
	o := pipeline.NewOrchestrator(f.splitter, f.extractor, f.coils, writer, f.opts)
	ctx := context.Background()

	res := o.Process(ctx, "/in/bol.pdf", "acme")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.SheetRow)

	stored, err := writer.ReadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "CT-001", stored[0].CoilTag)
	assert.Equal(t, "H 88123", stored[0].HeatNumber)
	assert.Equal(t, "2025-06-01", stored[0].DateReceived)
	assert.Equal(t, "2025-06-01 14:05:09", stored[0].ProcessedDate)
	assert.Equal(t, "VALID", stored[0].ValidationStatus)

	again := o.Process(ctx, "/in/bol.pdf", "acme")
	require.True(t, again.Success)
	assert.Equal(t, models.CountValidation{Expected: 1, Written: 0, Duplicates: 1, Match: true}, *again.CountValidation)
}
