package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"nicayne/pkg/models"
)

// RequiredFields must be non-empty for a record to be VALID.
var RequiredFields = []string{
	models.FieldBOLNumber, models.FieldCustomerName, models.FieldVendorName,
	models.FieldMaterial, models.FieldWeight, models.FieldDateReceived,
}

// completenessFields are the data columns counted by the completeness score.
var completenessFields = []string{
	models.FieldBOLNumber, models.FieldCustomerName, models.FieldVendorName, models.FieldCoilTag,
	models.FieldMaterial, models.FieldWidth, models.FieldThickness, models.FieldWeight,
	models.FieldDateReceived, models.FieldHeatNumber, models.FieldCustomerPO, models.FieldNotes,
}

var placeholders = map[string]bool{
	"Unknown": true, "MISSING": true, "null": true, "undefined": true, "None": true, "0": true,
}

// Validation summarizes how complete a record is.
type Validation struct {
	Status        models.ValidationStatus `json:"status"`
	MissingFields []string                `json:"missing_fields,omitempty"`
	Completeness  float64                 `json:"completeness"`
}

// Validate checks the required fields and scores completeness.
func Validate(rec models.NormalizedRecord) Validation {
	v := Validation{Status: models.StatusValid}
	for _, f := range RequiredFields {
		if strings.TrimSpace(rec.Field(f)) == "" {
			v.MissingFields = append(v.MissingFields, f)
		}
	}
	if len(v.MissingFields) > 0 {
		v.Status = models.StatusNeedsReview
	}

	filled := 0
	for _, f := range completenessFields {
		if strings.TrimSpace(rec.Field(f)) != "" {
			filled++
		}
	}
	v.Completeness = float64(filled) / float64(len(completenessFields))
	return v
}

// IsPlaceholder reports whether an LLM value stands for "no value".
func IsPlaceholder(v string) bool {
	return placeholders[strings.TrimSpace(v)]
}

func meaningful(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !IsPlaceholder(v)
}

// HasStrongIdentifier reports whether raw carries a coil tag, heat number or BOL number.
// Records without one are never persisted.
func HasStrongIdentifier(raw models.CoilRecord) bool {
	return meaningful(raw.Get(models.FieldCoilTag)) ||
		meaningful(raw.Get(models.FieldHeatNumber)) ||
		meaningful(raw.Get(models.FieldBOLNumber))
}

var (
	minWidth = decimal.NewFromInt(3)
	maxWidth = decimal.NewFromInt(100)
)

// SuspiciousWidth parses the coil width in inches and reports whether it falls
// outside [3, 100]. An empty width is not suspicious; a non-numeric one is an error.
func SuspiciousWidth(raw models.CoilRecord) (decimal.Decimal, bool, error) {
	w := raw.Get(models.FieldWidth)
	w = strings.ReplaceAll(w, "inches", "")
	w = strings.ReplaceAll(w, `"`, "")
	w = strings.TrimSpace(w)
	if w == "" {
		return decimal.Zero, false, nil
	}

	width, err := decimal.NewFromString(w)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("non-numeric width %q", raw.Get(models.FieldWidth))
	}
	return width, width.LessThan(minWidth) || width.GreaterThan(maxWidth), nil
}
