package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoilRecordGet(t *testing.T) {
	raw := CoilRecord{
		FieldBOLNumber:    " 1641211 ",
		FieldCoilTagAlias: "ct-001",
		FieldWeight:       2500.0,
		FieldNotes:        nil,
		"FLAG":            true,
	}

	assert.Equal(t, "1641211", raw.Get(FieldBOLNumber))
	assert.Equal(t, "ct-001", raw.Get(FieldCoilTag))
	assert.Equal(t, "2500", raw.Get(FieldWeight))
	assert.Equal(t, "", raw.Get(FieldNotes))
	assert.Equal(t, "true", raw.Get("FLAG"))
	assert.Equal(t, "", raw.Get(FieldHeatNumber))

	raw[FieldCoilTag] = "CT-002"
	assert.Equal(t, "CT-002", raw.Get(FieldCoilTag))
}

func TestHeaderMatchesValues(t *testing.T) {
	rec := NormalizedRecord{BOLNumber: "B1", CoilTag: "CT-1", ProcessedDate: "2025-06-01 14:05:09"}

	assert.Len(t, Header(), 15)
	assert.Len(t, rec.Values(), len(Header()))
	assert.Equal(t, "CT-1", rec.Field(FieldCoilTag))
	assert.Equal(t, "2025-06-01 14:05:09", rec.Field(FieldProcessedDate))
	assert.Equal(t, "", rec.Field("UNKNOWN"))
	assert.Equal(t, "B1|CT-1|", rec.Key())
}

func TestRecordFromRow(t *testing.T) {
	rec := NormalizedRecord{
		BOLNumber: "B1", CustomerName: "Acme", CoilTag: "CT-1",
		HeatNumber: "H1", ValidationStatus: "VALID",
	}
	assert.Equal(t, rec, RecordFromRow(Header(), rec.Values()))

	short := RecordFromRow(Header(), []string{"B2", "Acme"})
	assert.Equal(t, "B2", short.BOLNumber)
	assert.Equal(t, "", short.ProcessedDate)

	reordered := RecordFromRow([]string{FieldHeatNumber, FieldBOLNumber}, []string{"H9", "B9"})
	assert.Equal(t, "H9", reordered.HeatNumber)
	assert.Equal(t, "B9", reordered.BOLNumber)
}
