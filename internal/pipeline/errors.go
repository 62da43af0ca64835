package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a job failed. It is reported as error_kind.
type ErrorKind string

const (
	KindInvalidPDF         ErrorKind = "InvalidPDF"
	KindNoTextExtracted    ErrorKind = "NoTextExtracted"
	KindExtractionFailed   ErrorKind = "ExtractionFailed"
	KindNoDataExtracted    ErrorKind = "NoDataExtracted"
	KindWriteFailed        ErrorKind = "WriteFailed"
	KindNormalizationError ErrorKind = "NormalizationError"
)

var (
	// ErrInvalidPDF is returned when the source document fails validation.
	ErrInvalidPDF = errors.New("invalid PDF document")

	// ErrNoTextExtracted is returned when a single-page document yields no text.
	ErrNoTextExtracted = errors.New("no text could be extracted from document")

	// ErrExtractionFailed is returned when no LLM provider produced usable coil data.
	ErrExtractionFailed = errors.New("coil data extraction failed")

	// ErrNoDataExtracted is returned when no coil with a strong identifier was found.
	ErrNoDataExtracted = errors.New("no coil data extracted")

	// ErrWriteFailed is returned when the spreadsheet write did not succeed.
	ErrWriteFailed = errors.New("failed to write records to spreadsheet")

	// ErrNormalization is returned when records could not be normalized.
	ErrNormalization = errors.New("record normalization failed")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidPDF:         ErrInvalidPDF,
	KindNoTextExtracted:    ErrNoTextExtracted,
	KindExtractionFailed:   ErrExtractionFailed,
	KindNoDataExtracted:    ErrNoDataExtracted,
	KindWriteFailed:        ErrWriteFailed,
	KindNormalizationError: ErrNormalization,
}

// Sentinel returns the package error for the kind, or nil for an unknown kind.
func (k ErrorKind) Sentinel() error {
	return kindSentinels[k]
}

// JobError describes a failed job step.
type JobError struct {
	// Op is the step that failed (e.g., "split", "write").
	Op string

	// Kind classifies the failure.
	Kind ErrorKind

	// Err is the underlying error.
	Err error

	// Details provides additional context.
	Details string
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pipeline: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *JobError) Unwrap() error {
	return e.Err
}

// Is matches both the underlying error and the sentinel of the kind.
func (e *JobError) Is(target error) bool {
	if s := e.Kind.Sentinel(); s != nil && target == s {
		return true
	}
	return errors.Is(e.Err, target)
}

// NewJobError creates a JobError. A nil err is replaced by the kind's sentinel.
func NewJobError(op string, kind ErrorKind, err error, details string) *JobError {
	if err == nil {
		err = kind.Sentinel()
	}
	return &JobError{Op: op, Kind: kind, Err: err, Details: details}
}

// KindOf returns the kind of the first JobError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return ""
}
