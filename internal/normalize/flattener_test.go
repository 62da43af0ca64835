package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nicayne/internal/normalize"
	"nicayne/pkg/models"
)

func clock() time.Time {
	return time.Date(2025, 6, 1, 14, 5, 9, 0, time.UTC)
}

func TestFlattenCompleteRecord(t *testing.T) {
	f := normalize.NewFlattener().WithClock(clock)

	rec := f.Flatten(models.CoilRecord{
		"BOL_NUMBER":      "bol-1641211",
		"CUSTOMER_NAME":   "nicayne metals inc",
		"VENDOR_NAME":     "mak steel llc",
		"COIL_TAG":        " ct-001 ",
		"MATERIAL":        "hot rolled steel",
		"WIDTH":           `48"`,
		"THICKNESS":       0.125,
		"WEIGHT":          "2,500 lb",
		"NUMBER_OF_COILS": 1.0,
		"DATE_RECEIVED":   "06/01/2025",
		"HEAT_NUMBER":     "h88123",
		"CUSTOMER_PO":     "po 4500012",
		"NOTES":           "  wet  on arrival ",
	})

	assert.Equal(t, models.NormalizedRecord{
		BOLNumber:        "BOL-1641211",
		CustomerName:     "Nicayne Metals INC",
		VendorName:       "Mak Steel LLC",
		CoilTag:          "CT-001",
		Material:         "Steel",
		Width:            "48 inches",
		Thickness:        "0.125",
		Weight:           "2500 lbs",
		NumberOfCoils:    "1",
		DateReceived:     "2025-06-01",
		HeatNumber:       "H88123",
		CustomerPO:       "PO 4500012",
		Notes:            "wet on arrival",
		ValidationStatus: "VALID",
		ProcessedDate:    "2025-06-01 14:05:09",
	}, rec)
}

func TestFlattenNeedsReview(t *testing.T) {
	f := normalize.NewFlattener().WithClock(clock)

	rec := f.Flatten(models.CoilRecord{"COIL_TAG#": "CT-001", "WEIGHT": nil})
	assert.Equal(t, "NEEDS_REVIEW", rec.ValidationStatus)
	assert.Equal(t, "1", rec.NumberOfCoils)
	assert.Equal(t, "", rec.Weight)
}

func TestFlattenKeepsErrorStatus(t *testing.T) {
	f := normalize.NewFlattener().WithClock(clock)

	rec := f.Flatten(models.CoilRecord{"COIL_TAG#": "CT-001", "VALIDATION_STATUS": "ERROR"})
	assert.Equal(t, "ERROR", rec.ValidationStatus)
}

func TestFlattenIsStableOnItsOutput(t *testing.T) {
	f := normalize.NewFlattener().WithClock(clock)
	first := f.Flatten(models.CoilRecord{
		"BOL_NUMBER": "bol 1", "COIL_TAG#": "ct 1", "HEAT_NUMBER": "h 1",
		"WIDTH": "1,048.5 in", "DATE_RECEIVED": "1/2/2025",
	})

	again := f.Flatten(models.CoilRecord{
		"BOL_NUMBER": first.BOLNumber, "COIL_TAG#": first.CoilTag, "HEAT_NUMBER": first.HeatNumber,
		"WIDTH": first.Width, "DATE_RECEIVED": first.DateReceived,
	})
	assert.Equal(t, first.Key(), again.Key())
	assert.Equal(t, first.Width, again.Width)
	assert.Equal(t, first.DateReceived, again.DateReceived)
}

func TestErrorRecord(t *testing.T) {
	f := normalize.NewFlattener().WithClock(clock)

	rec := f.ErrorRecord("bad input")
	assert.Equal(t, "Processing Error: bad input", rec.Notes)
	assert.Equal(t, "ERROR", rec.ValidationStatus)
	assert.Equal(t, "2025-06-01 14:05:09", rec.ProcessedDate)
	assert.Empty(t, rec.BOLNumber)
}

func TestFlattenAll(t *testing.T) {
	f := normalize.NewFlattener().WithClock(clock)
	recs := f.FlattenAll([]models.CoilRecord{{"COIL_TAG#": "a"}, {"COIL_TAG#": "b"}})
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].CoilTag)
	assert.Equal(t, "B", recs[1].CoilTag)
}
