package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names used by the extraction prompt, the normalizer and the sheet header.
const (
	FieldBOLNumber        = "BOL_NUMBER"
	FieldCustomerName     = "CUSTOMER_NAME"
	FieldVendorName       = "VENDOR_NAME"
	FieldCoilTag          = "COIL_TAG#"
	FieldCoilTagAlias     = "COIL_TAG"
	FieldMaterial         = "MATERIAL"
	FieldWidth            = "WIDTH"
	FieldThickness        = "THICKNESS"
	FieldWeight           = "WEIGHT"
	FieldNumberOfCoils    = "NUMBER_OF_COILS"
	FieldDateReceived     = "DATE_RECEIVED"
	FieldHeatNumber       = "HEAT_NUMBER"
	FieldCustomerPO       = "CUSTOMER_PO"
	FieldNotes            = "NOTES"
	FieldValidationStatus = "VALIDATION_STATUS"
	FieldProcessedDate    = "PROCESSED_DATE"
)

// ValidationStatus is the review state written to the VALIDATION_STATUS column.
type ValidationStatus string

const (
	StatusPending     ValidationStatus = "PENDING"
	StatusValid       ValidationStatus = "VALID"
	StatusNeedsReview ValidationStatus = "NEEDS_REVIEW"
	StatusError       ValidationStatus = "ERROR"
)

// CoilRecord is one coil as returned by the LLM, keyed by field name.
// Values are whatever JSON scalars the model produced.
type CoilRecord map[string]interface{}

// Get returns the field as a trimmed string. COIL_TAG is accepted for COIL_TAG#.
func (c CoilRecord) Get(field string) string {
	v, ok := c[field]
	if (!ok || v == nil) && field == FieldCoilTag {
		v, ok = c[FieldCoilTagAlias]
	}
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// NormalizedRecord is the fixed-schema row written to the spreadsheet and the backup file.
type NormalizedRecord struct {
	BOLNumber        string `json:"BOL_NUMBER" csv:"BOL_NUMBER"`
	CustomerName     string `json:"CUSTOMER_NAME" csv:"CUSTOMER_NAME"`
	VendorName       string `json:"VENDOR_NAME" csv:"VENDOR_NAME"`
	CoilTag          string `json:"COIL_TAG#" csv:"COIL_TAG#"`
	Material         string `json:"MATERIAL" csv:"MATERIAL"`
	Width            string `json:"WIDTH" csv:"WIDTH"`
	Thickness        string `json:"THICKNESS" csv:"THICKNESS"`
	Weight           string `json:"WEIGHT" csv:"WEIGHT"`
	NumberOfCoils    string `json:"NUMBER_OF_COILS" csv:"NUMBER_OF_COILS"`
	DateReceived     string `json:"DATE_RECEIVED" csv:"DATE_RECEIVED"`
	HeatNumber       string `json:"HEAT_NUMBER" csv:"HEAT_NUMBER"`
	CustomerPO       string `json:"CUSTOMER_PO" csv:"CUSTOMER_PO"`
	Notes            string `json:"NOTES" csv:"NOTES"`
	ValidationStatus string `json:"VALIDATION_STATUS" csv:"VALIDATION_STATUS"`
	ProcessedDate    string `json:"PROCESSED_DATE" csv:"PROCESSED_DATE"`
}

// Header returns the sheet header in column order.
func Header() []string {
	return []string{
		FieldBOLNumber, FieldCustomerName, FieldVendorName, FieldCoilTag,
		FieldMaterial, FieldWidth, FieldThickness, FieldWeight, FieldNumberOfCoils,
		FieldDateReceived, FieldHeatNumber, FieldCustomerPO, FieldNotes,
		FieldValidationStatus, FieldProcessedDate,
	}
}

// Values returns the record in header order.
func (r NormalizedRecord) Values() []string {
	return []string{
		r.BOLNumber, r.CustomerName, r.VendorName, r.CoilTag,
		r.Material, r.Width, r.Thickness, r.Weight, r.NumberOfCoils,
		r.DateReceived, r.HeatNumber, r.CustomerPO, r.Notes,
		r.ValidationStatus, r.ProcessedDate,
	}
}

// Field returns the value of a header column, or "" for unknown names.
func (r NormalizedRecord) Field(name string) string {
	for i, h := range Header() {
		if h == name {
			return r.Values()[i]
		}
	}
	return ""
}

// Key identifies a coil for duplicate detection.
func (r NormalizedRecord) Key() string {
	return r.BOLNumber + "|" + r.CoilTag + "|" + r.HeatNumber
}

// RecordFromRow builds a record from a sheet row laid out as header.
// Missing trailing cells are treated as empty.
func RecordFromRow(header []string, row []string) NormalizedRecord {
	get := func(name string) string {
		for i, h := range header {
			if h == name && i < len(row) {
				return row[i]
			}
		}
		return ""
	}
	return NormalizedRecord{
		BOLNumber:        get(FieldBOLNumber),
		CustomerName:     get(FieldCustomerName),
		VendorName:       get(FieldVendorName),
		CoilTag:          get(FieldCoilTag),
		Material:         get(FieldMaterial),
		Width:            get(FieldWidth),
		Thickness:        get(FieldThickness),
		Weight:           get(FieldWeight),
		NumberOfCoils:    get(FieldNumberOfCoils),
		DateReceived:     get(FieldDateReceived),
		HeatNumber:       get(FieldHeatNumber),
		CustomerPO:       get(FieldCustomerPO),
		Notes:            get(FieldNotes),
		ValidationStatus: get(FieldValidationStatus),
		ProcessedDate:    get(FieldProcessedDate),
	}
}
