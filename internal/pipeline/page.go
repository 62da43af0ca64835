package pipeline

import (
	"context"
	"fmt"

	"nicayne/internal/normalize"
	"nicayne/internal/ocr"
	"nicayne/pkg/models"
)

// PageResult is the outcome of one processing unit: a split page, or the
// whole document on the single-page path.
type PageResult struct {
	// Page is the 1-based page number.
	Page int

	// Text is the preprocessed page text.
	Text string

	// Records are the coils with a strong identifier.
	Records []models.CoilRecord

	// Rejected counts coils dropped for lacking a strong identifier.
	Rejected int

	// Err is set when the page produced no usable data.
	Err error
}

// processPage extracts text from path, runs the LLM and filters the coils.
// A panic while handling the page fails only that page.
func (o *Orchestrator) processPage(ctx context.Context, job *Job, page int, path string) (res PageResult) {
	res = PageResult{Page: page}
	log := job.log.With().Int("page", page).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic while processing page")
			res = PageResult{
				Page: page,
				Err:  NewJobError("process page", KindExtractionFailed, fmt.Errorf("panic: %v", r), fmt.Sprintf("page %d", page)),
			}
		}
	}()

	text, err := o.extractor.ExtractText(ctx, path)
	if err != nil {
		res.Err = NewJobError("extract text", KindNoTextExtracted, err, fmt.Sprintf("page %d", page))
		return res
	}
	res.Text = ocr.Preprocess(text)
	log.Debug().Int("chars", len(res.Text)).Msg("Extracted page text")

	extracted, err := o.refiner.Extract(ctx, res.Text, job.Supplier)
	if err != nil {
		res.Err = NewJobError("extract coils", KindExtractionFailed, err, fmt.Sprintf("page %d", page))
		return res
	}

	for _, raw := range extracted.Records() {
		if !normalize.HasStrongIdentifier(raw) {
			res.Rejected++
			continue
		}
		if width, bad, err := normalize.SuspiciousWidth(raw); err != nil {
			log.Warn().Err(err).Str("coil_tag", raw.Get(models.FieldCoilTag)).Msg("Coil width is not numeric")
		} else if bad {
			log.Warn().
				Str("coil_tag", raw.Get(models.FieldCoilTag)).
				Str("width", width.String()).
				Msg("Coil width outside expected range")
		}
		res.Records = append(res.Records, raw)
	}

	if res.Rejected > 0 {
		log.Warn().Int("rejected", res.Rejected).Msg("Dropped coils without a coil tag, heat number or BOL number")
	}
	log.Info().Int("coils", len(res.Records)).Msg("Processed page")
	return res
}
