package pdftext_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nicayne/internal/pdftext"
	"nicayne/internal/testutil"
)

func TestPagesReadsTextLayer(t *testing.T) {
	path := testutil.WritePDF(t, t.TempDir(), "bol.pdf", []string{
		"BILL OF LADING 1641211",
		"COIL TAG CT001",
		"HEAT 88123",
	})

	texts, err := pdftext.Pages(path, 2)
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "LADING")
	assert.Contains(t, texts[1], "CT001")
}

func TestDocumentJoinsPages(t *testing.T) {
	path := testutil.WritePDF(t, t.TempDir(), "bol.pdf", []string{"FIRST", "SECOND"})

	text, err := pdftext.Document(path)
	require.NoError(t, err)
	assert.Contains(t, text, "FIRST")
	assert.Contains(t, text, "SECOND")
}

func TestPagesUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0644))

	_, err := pdftext.Pages(path, 0)
	assert.ErrorIs(t, err, pdftext.ErrUnreadable)
}
