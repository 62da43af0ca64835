package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nicayne/internal/normalize"
	"nicayne/pkg/models"
)

func TestValidate(t *testing.T) {
	v := normalize.Validate(models.NormalizedRecord{
		BOLNumber: "1", CustomerName: "c", VendorName: "v", Material: "Steel",
		Weight: "1 lbs", DateReceived: "2025-06-01",
	})
	assert.Equal(t, models.StatusValid, v.Status)
	assert.Empty(t, v.MissingFields)
	assert.InDelta(t, 0.5, v.Completeness, 1e-9)

	v = normalize.Validate(models.NormalizedRecord{CoilTag: "CT-001", Weight: "1"})
	assert.Equal(t, models.StatusNeedsReview, v.Status)
	assert.Equal(t, []string{"BOL_NUMBER", "CUSTOMER_NAME", "VENDOR_NAME", "MATERIAL", "DATE_RECEIVED"}, v.MissingFields)
	assert.InDelta(t, 2.0/12.0, v.Completeness, 1e-9)
}

func TestHasStrongIdentifier(t *testing.T) {
	tests := []struct {
		name string
		raw  models.CoilRecord
		want bool
	}{
		{"coil tag", models.CoilRecord{"COIL_TAG#": "CT-001"}, true},
		{"alias tag", models.CoilRecord{"COIL_TAG": "CT-001"}, true},
		{"heat only", models.CoilRecord{"HEAT_NUMBER": "88123"}, true},
		{"bol only", models.CoilRecord{"BOL_NUMBER": 1641211.0}, true},
		{"placeholders", models.CoilRecord{"COIL_TAG#": "Unknown", "HEAT_NUMBER": "None", "BOL_NUMBER": "0"}, false},
		{"blank", models.CoilRecord{"COIL_TAG#": "  ", "WIDTH": "48"}, false},
		{"null", models.CoilRecord{"COIL_TAG#": nil}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.HasStrongIdentifier(tt.raw))
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	for _, v := range []string{"Unknown", "MISSING", "null", "undefined", "None", "0", " None "} {
		assert.True(t, normalize.IsPlaceholder(v), v)
	}
	for _, v := range []string{"unknown", "NULL", "00", "CT-0"} {
		assert.False(t, normalize.IsPlaceholder(v), v)
	}
}

func TestSuspiciousWidth(t *testing.T) {
	tests := []struct {
		width      interface{}
		suspicious bool
		wantErr    bool
	}{
		{"48", false, false},
		{`48.5"`, false, false},
		{"2.5 inches", true, false},
		{120.0, true, false},
		{"3", false, false},
		{"100", false, false},
		{"wide", false, true},
		{"", false, false},
	}

	for _, tt := range tests {
		_, suspicious, err := normalize.SuspiciousWidth(models.CoilRecord{"WIDTH": tt.width})
		if tt.wantErr {
			require.Error(t, err, tt.width)
			continue
		}
		require.NoError(t, err, tt.width)
		assert.Equal(t, tt.suspicious, suspicious, tt.width)
	}
}
