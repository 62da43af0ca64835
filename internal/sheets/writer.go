package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nicayne/internal/logger"
	"nicayne/pkg/models"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 30 * time.Second

// Options configures a Writer.
type Options struct {
	// Worksheet is the preferred worksheet title.
	Worksheet string

	// Dedup skips records whose key already exists in the worksheet.
	Dedup bool

	// Timeout bounds each backend call.
	Timeout time.Duration
}

// Migration describes what EnsureHeaders changed.
type Migration struct {
	Worksheet      string   `json:"worksheet"`
	Created        bool     `json:"created"`
	HeaderReplaced bool     `json:"header_replaced"`
	PreviousHeader []string `json:"previous_header,omitempty"`
}

// AppendResult is the outcome of a single-record append.
type AppendResult struct {
	Success   bool   `json:"success"`
	RowNumber int    `json:"row_number,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult is the outcome of a bulk append.
type BatchResult struct {
	Success    bool   `json:"success"`
	RowsAdded  int    `json:"rows_added"`
	Duplicates int    `json:"duplicates"`
	FirstRow   int    `json:"first_row,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Writer appends normalized records to the inventory worksheet.
type Writer struct {
	backend Backend
	opts    Options
	log     zerolog.Logger
}

// NewWriter creates a writer over backend.
func NewWriter(backend Backend, opts Options) *Writer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Writer{
		backend: backend,
		opts:    opts,
		log:     logger.WithComponent("sheet-writer"),
	}
}

func (w *Writer) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.opts.Timeout)
}

// resolveWorksheet picks the configured worksheet, else the first one, else
// creates the configured one.
func (w *Writer) resolveWorksheet(ctx context.Context) (string, bool, error) {
	const op = "resolveWorksheet"

	cctx, cancel := w.callCtx(ctx)
	defer cancel()

	names, err := w.backend.Worksheets(cctx)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	for _, n := range names {
		if n == w.opts.Worksheet {
			return n, false, nil
		}
	}
	if len(names) > 0 {
		w.log.Warn().
			Str("wanted", w.opts.Worksheet).
			Str("using", names[0]).
			Msg("Configured worksheet not found, using first worksheet")
		return names[0], false, nil
	}
	if w.opts.Worksheet == "" {
		return "", false, fmt.Errorf("%s: %w", op, ErrNoWorksheet)
	}

	if err := w.backend.CreateWorksheet(cctx, w.opts.Worksheet); err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return w.opts.Worksheet, true, nil
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EnsureHeaders makes row 1 of the worksheet match the record header,
// replacing it when absent or different (column order included, since rows
// are written positionally). Existing data rows are not moved.
func (w *Writer) EnsureHeaders(ctx context.Context) (Migration, error) {
	const op = "EnsureHeaders"

	sheet, created, err := w.resolveWorksheet(ctx)
	if err != nil {
		return Migration{}, fmt.Errorf("%s: %w", op, err)
	}
	m := Migration{Worksheet: sheet, Created: created}

	cctx, cancel := w.callCtx(ctx)
	defer cancel()

	current, err := w.backend.ReadHeader(cctx, sheet)
	if err != nil {
		return m, fmt.Errorf("%s: %w", op, err)
	}
	current = trimTrailingEmpty(current)
	want := models.Header()
	if equalHeader(current, want) {
		return m, nil
	}

	if err := w.backend.WriteHeader(cctx, sheet, want); err != nil {
		return m, fmt.Errorf("%s: %w", op, err)
	}
	m.HeaderReplaced = true
	m.PreviousHeader = current

	w.log.Info().
		Str("sheet", sheet).
		Strs("previous", current).
		Msg("Migrated worksheet header")
	return m, nil
}

// Append writes one record. Failures are reported in the result.
func (w *Writer) Append(ctx context.Context, rec models.NormalizedRecord) AppendResult {
	res := w.AppendBatch(ctx, []models.NormalizedRecord{rec})
	if !res.Success {
		return AppendResult{Error: res.Error}
	}
	if res.Duplicates > 0 {
		return AppendResult{Success: true}
	}
	return AppendResult{Success: true, RowNumber: res.FirstRow}
}

// AppendBatch writes records in one backend call. With Dedup, records whose
// key is already present (or repeated within the batch) are skipped and
// counted as duplicates. Failures are reported in the result.
func (w *Writer) AppendBatch(ctx context.Context, recs []models.NormalizedRecord) BatchResult {
	if len(recs) == 0 {
		return BatchResult{Success: true}
	}

	sheet, _, err := w.resolveWorksheet(ctx)
	if err != nil {
		return w.failed(err, len(recs))
	}

	toWrite := recs
	duplicates := 0
	if w.opts.Dedup {
		toWrite, duplicates, err = w.dropDuplicates(ctx, sheet, recs)
		if err != nil {
			return w.failed(err, len(recs))
		}
	}

	result := BatchResult{Success: true, Duplicates: duplicates}
	if len(toWrite) == 0 {
		w.log.Info().Int("duplicates", duplicates).Msg("All records already present, nothing to write")
		return result
	}

	rows := make([][]string, 0, len(toWrite))
	for _, r := range toWrite {
		rows = append(rows, r.Values())
	}

	cctx, cancel := w.callCtx(ctx)
	defer cancel()

	first, err := w.backend.AppendRows(cctx, sheet, rows)
	if err != nil {
		return w.failed(err, len(recs))
	}

	result.RowsAdded = len(rows)
	result.FirstRow = first
	w.log.Info().
		Str("sheet", sheet).
		Int("rows_added", result.RowsAdded).
		Int("duplicates", duplicates).
		Int("first_row", first).
		Msg("Wrote records to sheet")
	return result
}

func (w *Writer) failed(err error, n int) BatchResult {
	w.log.Error().Err(err).Int("records", n).Msg("Sheet write failed")
	return BatchResult{Error: err.Error()}
}

func (w *Writer) dropDuplicates(ctx context.Context, sheet string, recs []models.NormalizedRecord) ([]models.NormalizedRecord, int, error) {
	existing, err := w.readRecords(ctx, sheet)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool, len(existing)+len(recs))
	for _, r := range existing {
		if hasIdentity(r) {
			seen[r.Key()] = true
		}
	}

	out := make([]models.NormalizedRecord, 0, len(recs))
	dups := 0
	for _, r := range recs {
		// Records without any identifier, such as ERROR rows, are never duplicates.
		if !hasIdentity(r) {
			out = append(out, r)
			continue
		}
		k := r.Key()
		if seen[k] {
			dups++
			w.log.Debug().Str("key", k).Msg("Skipping duplicate record")
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out, dups, nil
}

func hasIdentity(r models.NormalizedRecord) bool {
	return strings.TrimSpace(r.BOLNumber) != "" || strings.TrimSpace(r.CoilTag) != "" || strings.TrimSpace(r.HeatNumber) != ""
}

// ReadRecords returns every data row of the worksheet as a record.
func (w *Writer) ReadRecords(ctx context.Context) ([]models.NormalizedRecord, error) {
	const op = "ReadRecords"

	sheet, _, err := w.resolveWorksheet(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	recs, err := w.readRecords(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return recs, nil
}

func (w *Writer) readRecords(ctx context.Context, sheet string) ([]models.NormalizedRecord, error) {
	cctx, cancel := w.callCtx(ctx)
	defer cancel()

	header, err := w.backend.ReadHeader(cctx, sheet)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		header = models.Header()
	}
	rows, err := w.backend.ReadRows(cctx, sheet)
	if err != nil {
		return nil, err
	}

	recs := make([]models.NormalizedRecord, 0, len(rows))
	for _, row := range rows {
		if len(trimTrailingEmpty(row)) == 0 {
			continue
		}
		recs = append(recs, models.RecordFromRow(header, row))
	}
	return recs, nil
}

// VerifyConnection reports whether the backend is reachable.
func (w *Writer) VerifyConnection(ctx context.Context) bool {
	cctx, cancel := w.callCtx(ctx)
	defer cancel()

	if _, err := w.backend.Worksheets(cctx); err != nil {
		w.log.Error().Err(err).Msg("Sheet connection check failed")
		return false
	}
	return true
}
