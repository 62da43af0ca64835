package ocr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nicayne/internal/ocr"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "collapses spaces and tabs",
			input: "BILL   OF\tLADING   ",
			want:  "BILL OF LADING",
		},
		{
			name:  "drops noise lines",
			input: "SHIPPER\n-----\n|\n___\n***\nACME STEEL",
			want:  "SHIPPER\nACME STEEL",
		},
		{
			name:  "keeps one blank line between blocks",
			input: "\n\nHEADER\n\n\n\nBODY\n\n\n",
			want:  "HEADER\n\nBODY",
		},
		{
			name:  "normalizes line endings",
			input: "A1\r\nB2\rC3",
			want:  "A1\nB2\nC3",
		},
		{
			name:  "empty input",
			input: "   \n\t\n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ocr.Preprocess(tt.input))
		})
	}
}

func TestPreprocessIdempotent(t *testing.T) {
	inputs := []string{
		"BOL #  1641211\n\n\n  COIL   TAG\tCT-001 \n--\nx\n\nWEIGHT 2,500 lb",
		"\n\n\n",
		"a\nbb\n\n\n\ncc",
		"  - - -  \n===\n  ",
	}
	for _, in := range inputs {
		once := ocr.Preprocess(in)
		assert.Equal(t, once, ocr.Preprocess(once), "input %q", in)
	}
}
