// Package export renders normalized coil records as CSV, XLSX or JSON for
// backups and sheet dumps.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"nicayne/pkg/models"
)

// Format is an output format name.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet title used in XLSX exports.
const SheetName = "Coils"

// ParseFormat accepts json, csv or xlsx in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use json, csv or xlsx)", s)
}

// Write renders recs to w in the given format.
func Write(w io.Writer, recs []models.NormalizedRecord, format Format) error {
	switch format {
	case FormatCSV:
		return CSV(w, recs)
	case FormatXLSX:
		data, err := XLSX(recs)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatJSON:
		return JSON(w, recs)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// CSV writes a header row followed by one row per record.
func CSV(w io.Writer, recs []models.NormalizedRecord) error {
	if len(recs) == 0 {
		cw := csv.NewWriter(w)
		if err := cw.Write(models.Header()); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}
	if err := gocsv.MarshalCSV(recs, gocsv.NewSafeCSVWriter(csv.NewWriter(w))); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// XLSX returns a workbook with a bold header row and one row per record.
// Cells are written as text so identifiers keep leading zeros.
func XLSX(recs []models.NormalizedRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	header := models.Header()
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(SheetName, cell, h); err != nil {
			return nil, err
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(SheetName, 1, 1, style); err != nil {
		return nil, err
	}

	for r, rec := range recs {
		for c, v := range rec.Values() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(SheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "C", 22)
	_ = f.SetColWidth(SheetName, "D", "L", 14)
	_ = f.SetColWidth(SheetName, "M", "M", 48)
	_ = f.SetColWidth(SheetName, "N", "O", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON writes recs as an indented array.
func JSON(w io.Writer, recs []models.NormalizedRecord) error {
	if recs == nil {
		recs = []models.NormalizedRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// ReadXLSX reads records back from an exported workbook.
func ReadXLSX(data []byte) ([]models.NormalizedRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	recs := make([]models.NormalizedRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		recs = append(recs, models.RecordFromRow(rows[0], row))
	}
	return recs, nil
}
