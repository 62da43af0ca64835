// Package normalize turns raw LLM coil records into fixed-schema sheet rows.
package normalize

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nicayne/internal/logger"
	"nicayne/pkg/models"
)

// ProcessedDateLayout is the PROCESSED_DATE column format.
const ProcessedDateLayout = "2006-01-02 15:04:05"

// Flattener normalizes coil records.
type Flattener struct {
	now func() time.Time
	log zerolog.Logger
}

// NewFlattener creates a flattener stamping records with the wall clock.
func NewFlattener() *Flattener {
	return &Flattener{
		now: time.Now,
		log: logger.WithComponent("normalizer"),
	}
}

// WithClock overrides the PROCESSED_DATE source.
func (f *Flattener) WithClock(now func() time.Time) *Flattener {
	f.now = now
	return f
}

// Flatten normalizes every field of raw. A failure inside normalization
// yields an error record instead of a partial one.
func (f *Flattener) Flatten(raw models.CoilRecord) (rec models.NormalizedRecord) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error().Interface("panic", r).Msg("Normalization failed")
			rec = f.ErrorRecord(fmt.Sprint(r))
		}
	}()

	rec = models.NormalizedRecord{
		BOLNumber:     NormalizeIdentifier(raw.Get(models.FieldBOLNumber)),
		CustomerName:  NormalizeName(raw.Get(models.FieldCustomerName)),
		VendorName:    NormalizeName(raw.Get(models.FieldVendorName)),
		CoilTag:       NormalizeIdentifier(raw.Get(models.FieldCoilTag)),
		Material:      NormalizeMaterial(raw.Get(models.FieldMaterial)),
		Width:         NormalizeMeasurement(raw.Get(models.FieldWidth)),
		Thickness:     NormalizeMeasurement(raw.Get(models.FieldThickness)),
		Weight:        NormalizeMeasurement(raw.Get(models.FieldWeight)),
		NumberOfCoils: NormalizeCount(raw.Get(models.FieldNumberOfCoils)),
		DateReceived:  NormalizeDate(raw.Get(models.FieldDateReceived)),
		HeatNumber:    NormalizeIdentifier(raw.Get(models.FieldHeatNumber)),
		CustomerPO:    NormalizeIdentifier(raw.Get(models.FieldCustomerPO)),
		Notes:         NormalizeNotes(raw.Get(models.FieldNotes)),
		ProcessedDate: f.now().Format(ProcessedDateLayout),
	}

	if models.ValidationStatus(raw.Get(models.FieldValidationStatus)) == models.StatusError {
		rec.ValidationStatus = string(models.StatusError)
	} else {
		rec.ValidationStatus = string(Validate(rec).Status)
	}

	return sanitizeRecord(rec)
}

// FlattenAll normalizes a batch in order.
func (f *Flattener) FlattenAll(raws []models.CoilRecord) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0, len(raws))
	for _, raw := range raws {
		out = append(out, f.Flatten(raw))
	}
	return out
}

// ErrorRecord is written in place of a record that could not be normalized.
func (f *Flattener) ErrorRecord(msg string) models.NormalizedRecord {
	return sanitizeRecord(models.NormalizedRecord{
		Notes:            "Processing Error: " + msg,
		ValidationStatus: string(models.StatusError),
		ProcessedDate:    f.now().Format(ProcessedDateLayout),
	})
}

func sanitizeRecord(r models.NormalizedRecord) models.NormalizedRecord {
	for _, p := range []*string{
		&r.BOLNumber, &r.CustomerName, &r.VendorName, &r.CoilTag, &r.Material,
		&r.Width, &r.Thickness, &r.Weight, &r.NumberOfCoils, &r.DateReceived,
		&r.HeatNumber, &r.CustomerPO, &r.Notes, &r.ValidationStatus, &r.ProcessedDate,
	} {
		*p = Sanitize(*p)
	}
	return r
}
