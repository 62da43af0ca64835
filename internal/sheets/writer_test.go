package sheets_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nicayne/internal/sheets"
	"nicayne/pkg/models"
)

func record(bol, tag, heat string) models.NormalizedRecord {
	return models.NormalizedRecord{
		BOLNumber:        bol,
		CoilTag:          tag,
		HeatNumber:       heat,
		Material:         "Steel",
		NumberOfCoils:    "1",
		ValidationStatus: "NEEDS_REVIEW",
		ProcessedDate:    "2025-06-01 14:05:09",
	}
}

func newXLSXWriter(t *testing.T, dedup bool) (*sheets.Writer, *sheets.XLSXBackend) {
	t.Helper()
	backend := sheets.NewXLSXBackend(filepath.Join(t.TempDir(), "inventory.xlsx"))
	return sheets.NewWriter(backend, sheets.Options{Worksheet: "UNPROCESSED_INVENTORY", Dedup: dedup}), backend
}

func TestEnsureHeadersCreatesWorksheet(t *testing.T) {
	ctx := context.Background()
	w, backend := newXLSXWriter(t, false)

	m, err := w.EnsureHeaders(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UNPROCESSED_INVENTORY", m.Worksheet)
	assert.True(t, m.Created)
	assert.True(t, m.HeaderReplaced)

	header, err := backend.ReadHeader(ctx, "UNPROCESSED_INVENTORY")
	require.NoError(t, err)
	assert.Equal(t, models.Header(), header)

	m, err = w.EnsureHeaders(ctx)
	require.NoError(t, err)
	assert.False(t, m.Created)
	assert.False(t, m.HeaderReplaced, "second run is a no-op")
}

func TestEnsureHeadersReplacesStaleHeader(t *testing.T) {
	ctx := context.Background()
	w, backend := newXLSXWriter(t, false)
	require.NoError(t, backend.CreateWorksheet(ctx, "UNPROCESSED_INVENTORY"))
	old := []string{"BOL_NUMBER", "COIL_TAG#", "WEIGHT", "OLD_A", "OLD_B", "OLD_C", "OLD_D", "OLD_E",
		"OLD_F", "OLD_G", "OLD_H", "OLD_I", "OLD_J", "OLD_K", "OLD_L", "OLD_M", "OLD_N"}
	require.NoError(t, backend.WriteHeader(ctx, "UNPROCESSED_INVENTORY", old))

	m, err := w.EnsureHeaders(ctx)
	require.NoError(t, err)
	assert.True(t, m.HeaderReplaced)
	assert.Equal(t, old, m.PreviousHeader)

	header, err := backend.ReadHeader(ctx, "UNPROCESSED_INVENTORY")
	require.NoError(t, err)
	assert.Equal(t, models.Header(), header[:len(models.Header())])
}

func TestWorksheetFallsBackToFirst(t *testing.T) {
	ctx := context.Background()
	backend := sheets.NewXLSXBackend(filepath.Join(t.TempDir(), "inventory.xlsx"))
	require.NoError(t, backend.CreateWorksheet(ctx, "Inventory 2025"))
	w := sheets.NewWriter(backend, sheets.Options{Worksheet: "UNPROCESSED_INVENTORY"})

	m, err := w.EnsureHeaders(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Inventory 2025", m.Worksheet)
	assert.False(t, m.Created)
}

func TestAppendAndReadBack(t *testing.T) {
	ctx := context.Background()
	w, _ := newXLSXWriter(t, false)
	_, err := w.EnsureHeaders(ctx)
	require.NoError(t, err)

	single := w.Append(ctx, record("1641211", "CT-001", "H1"))
	require.True(t, single.Success, single.Error)
	assert.Equal(t, 2, single.RowNumber)

	batch := w.AppendBatch(ctx, []models.NormalizedRecord{
		record("1641211", "CT-002", "H2"),
		record("1641211", "CT-003", "H3"),
	})
	require.True(t, batch.Success, batch.Error)
	assert.Equal(t, 2, batch.RowsAdded)
	assert.Equal(t, 3, batch.FirstRow)

	recs, err := w.ReadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "CT-001", recs[0].CoilTag)
	assert.Equal(t, record("1641211", "CT-003", "H3"), recs[2])
}

func TestAppendBatchDedup(t *testing.T) {
	ctx := context.Background()
	w, _ := newXLSXWriter(t, true)
	_, err := w.EnsureHeaders(ctx)
	require.NoError(t, err)

	recs := []models.NormalizedRecord{
		record("1641211", "CT-001", "H1"),
		record("1641211", "CT-002", "H2"),
		record("1641211", "CT-002", "H2"),
	}
	first := w.AppendBatch(ctx, recs)
	require.True(t, first.Success)
	assert.Equal(t, 2, first.RowsAdded)
	assert.Equal(t, 1, first.Duplicates)

	rerun := w.AppendBatch(ctx, recs)
	require.True(t, rerun.Success)
	assert.Equal(t, 0, rerun.RowsAdded)
	assert.Equal(t, 3, rerun.Duplicates)

	stored, err := w.ReadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "re-running a document does not add rows")
}

func TestAppendBatchEmpty(t *testing.T) {
	w, _ := newXLSXWriter(t, false)
	res := w.AppendBatch(context.Background(), nil)
	assert.True(t, res.Success)
	assert.Zero(t, res.RowsAdded)
}

type brokenBackend struct{ sheets.Backend }

func (brokenBackend) Worksheets(ctx context.Context) ([]string, error) {
	return nil, errors.New("503 service unavailable")
}

func TestWriteFailuresAreReported(t *testing.T) {
	w := sheets.NewWriter(brokenBackend{}, sheets.Options{Worksheet: "X"})
	ctx := context.Background()

	res := w.AppendBatch(ctx, []models.NormalizedRecord{record("1", "2", "3")})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "503")

	single := w.Append(ctx, record("1", "2", "3"))
	assert.False(t, single.Success)
	assert.NotEmpty(t, single.Error)

	assert.False(t, w.VerifyConnection(ctx))

	_, err := w.EnsureHeaders(ctx)
	assert.Error(t, err)
}

func TestVerifyConnectionXLSX(t *testing.T) {
	w, _ := newXLSXWriter(t, false)
	assert.True(t, w.VerifyConnection(context.Background()), "missing workbook is still reachable")
}

func TestAppendBatchDedupKeepsRecordsWithoutIdentifiers(t *testing.T) {
	ctx := context.Background()
	w, _ := newXLSXWriter(t, true)
	_, err := w.EnsureHeaders(ctx)
	require.NoError(t, err)

	failed := record("", "", "")
	failed.ValidationStatus = string(models.StatusError)
	recs := []models.NormalizedRecord{failed, failed, record("1641211", "CT-001", "H1")}

	res := w.AppendBatch(ctx, recs)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.RowsAdded)
	assert.Zero(t, res.Duplicates)

	again := w.AppendBatch(ctx, recs)
	require.True(t, again.Success)
	assert.Equal(t, 2, again.RowsAdded, "ERROR rows are written every time")
	assert.Equal(t, 1, again.Duplicates)

	stored, err := w.ReadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}
