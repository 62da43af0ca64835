package ocr

import (
	"errors"
	"fmt"
)

var (
	ErrPDFTooLarge          = errors.New("PDF exceeds the 20MB inline OCR limit")
	ErrInvalidPDF           = errors.New("invalid or corrupted PDF document")
	ErrOCRFailed            = errors.New("OCR processing failed")
	ErrTooManyPages         = errors.New("too many pages for one synchronous OCR request (maximum 5)")
	ErrEmptyDocument        = errors.New("OCR found no readable text")
	ErrInvalidConfiguration = errors.New("invalid OCR engine configuration")

	// ErrMissingCredentials means neither GOOGLE_CREDENTIALS nor
	// GOOGLE_APPLICATION_CREDENTIALS is set and no default credentials exist.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")

	// ErrNoTextExtracted is returned when neither the text layer nor the OCR
	// engine produced any text for a page.
	ErrNoTextExtracted = errors.New("no text could be extracted from page")
)

// OCRError records which extraction step failed and for which input.
type OCRError struct {
	Op      string
	Err     error
	Details string // page path, engine response, size
}

func (e *OCRError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
}

func (e *OCRError) Unwrap() error { return e.Err }

// Is lets errors.Is see through to the wrapped sentinel.
func (e *OCRError) Is(target error) bool { return errors.Is(e.Err, target) }

// WrapOCRError wraps err with op and details. Errors that already are an
// OCRError keep their original op, and nil stays nil.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var existing *OCRError
	if errors.As(err, &existing) {
		return err
	}
	return &OCRError{Op: op, Err: err, Details: details}
}
