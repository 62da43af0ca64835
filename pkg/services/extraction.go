package services

import (
	"context"

	"nicayne/pkg/models"
)

// ExtractionService is the entry point an upload handler or CLI calls for one BOL PDF.
type ExtractionService interface {
	// Process runs the whole extraction job for pdfPath using the supplier's prompt profile.
	// It never returns an error; failures are described by the result.
	Process(ctx context.Context, pdfPath string, supplier string) *models.JobResult
}
