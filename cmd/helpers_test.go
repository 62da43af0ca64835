package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nicayne/internal/logger"
	"nicayne/internal/pipeline"
	"nicayne/pkg/models"
)

func TestFindPDFFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "archive")
	require.NoError(t, os.Mkdir(sub, 0755))
	for _, p := range []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "B.PDF"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(sub, "c.pdf"),
	} {
		require.NoError(t, os.WriteFile(p, []byte("%PDF"), 0644))
	}

	files, err := findPDFFiles(dir, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "B.PDF")}, files)

	files, err = findPDFFiles(dir, true)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 7, workerCount(7))
	n := workerCount(0)
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 4)
}

func TestValidatePDFFile(t *testing.T) {
	log := logger.WithComponent("test")
	dir := t.TempDir()

	_, err := validatePDFFile(filepath.Join(dir, "missing.pdf"), 0, log)
	assert.ErrorContains(t, err, "not found")

	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = validatePDFFile(empty, 0, log)
	assert.ErrorContains(t, err, "empty")

	big := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(big, make([]byte, 64), 0644))
	_, err = validatePDFFile(big, 32, log)
	assert.ErrorContains(t, err, "too large")

	info, err := validatePDFFile(big, 0, log)
	require.NoError(t, err)
	assert.Equal(t, int64(64), info.Size())

	_, err = validatePDFFile(dir, 0, log)
	assert.ErrorContains(t, err, "not a regular file")
}

func TestHandleJobError(t *testing.T) {
	err := handleJobError(&models.JobResult{
		Document:   "bol.pdf",
		ErrorKind:  string(pipeline.KindWriteFailed),
		Error:      "quota exceeded",
		BackupPath: "backups/x.json",
	})
	assert.EqualError(t, err, "sheet write failed for bol.pdf (data saved to backups/x.json): quota exceeded")

	err = handleJobError(&models.JobResult{Document: "bol.pdf", ErrorKind: string(pipeline.KindNoDataExtracted)})
	assert.ErrorContains(t, err, "no coils")
}

func TestFormatJobResult(t *testing.T) {
	out := formatJobResult(&models.JobResult{
		JobID:          "job-1",
		Success:        true,
		State:          "DONE",
		Supplier:       "default",
		Document:       "bol.pdf",
		CoilsProcessed: 1,
		PagesProcessed: 5,
		FailedPages:    []int{3},
		CountValidation: &models.CountValidation{
			Expected: 1, Written: 1, Match: true,
		},
		Data:     []models.NormalizedRecord{{CoilTag: "CT-001", HeatNumber: "H1", Weight: "2500 lbs", ValidationStatus: "VALID"}},
		Duration: "1.2s",
	})

	assert.Contains(t, out, "=== BOL extraction: bol.pdf ===")
	assert.Contains(t, out, "5 processed, failed [3]")
	assert.Contains(t, out, "expected 1, written 1, duplicates 0 (match)")
	assert.Contains(t, out, "CT-001")
}

type stubService struct{}

func (stubService) Process(ctx context.Context, pdfPath, supplier string) *models.JobResult {
	return &models.JobResult{Document: filepath.Base(pdfPath), Supplier: supplier, Success: pdfPath != "bad.pdf"}
}

func TestProcessPDFsInParallelKeepsOrder(t *testing.T) {
	files := []string{"a.pdf", "bad.pdf", "c.pdf", "d.pdf"}

	results := processPDFsInParallel(context.Background(), stubService{}, files, "nucor", 3, false, logger.WithComponent("test"))

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, files[i], r.Document)
		assert.Equal(t, "nucor", r.Supplier)
	}
	assert.False(t, results[1].Success)
	assert.Equal(t, "FAILED", statusLabel(results[1]))
	assert.Equal(t, "OK", statusLabel(results[0]))
}

func TestStatusLabelWriteFailedIsWarning(t *testing.T) {
	res := &models.JobResult{
		Success:         true,
		ErrorKind:       string(pipeline.KindWriteFailed),
		CountValidation: &models.CountValidation{Expected: 2},
	}
	assert.Equal(t, "WARNING", statusLabel(res))

	res.ErrorKind = ""
	res.CountValidation = &models.CountValidation{Expected: 2, Written: 2, Match: true}
	assert.Equal(t, "OK", statusLabel(res))
}
