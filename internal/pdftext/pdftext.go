// Package pdftext reads the embedded text layer of PDF pages.
//
// It wraps github.com/ledongthuc/pdf, which panics on some malformed
// documents; every entry point converts such panics into errors.
package pdftext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when the PDF cannot be parsed for text.
var ErrUnreadable = errors.New("pdf text layer unreadable")

// Pages returns the plain text of the first maxPages pages (all pages when maxPages <= 0).
// Pages whose text cannot be decoded are returned as empty strings.
func Pages(path string, maxPages int) (texts []string, err error) {
	const op = "Pages"

	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = fmt.Errorf("%s: %w: %v", op, ErrUnreadable, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadable, err)
	}
	defer f.Close()

	n := r.NumPage()
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}

	texts = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		texts = append(texts, pageText(r, i))
	}
	return texts, nil
}

// Document returns the text of all pages joined by blank lines.
func Document(path string) (string, error) {
	pages, err := Pages(path, 0)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

func pageText(r *pdf.Reader, i int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	p := r.Page(i)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
