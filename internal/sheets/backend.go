// Package sheets writes normalized coil records to the inventory spreadsheet.
//
// The Writer holds the domain rules (worksheet resolution, header migration,
// duplicate skipping, count reporting). Storage is a Backend: Google Sheets
// for production, or a local XLSX workbook for offline runs and tests.
package sheets

import (
	"context"
	"errors"
)

var (
	// ErrNoWorksheet is returned when no worksheet can be found or created.
	ErrNoWorksheet = errors.New("no worksheet available")

	// ErrInvalidSheetURL is returned when a spreadsheet ID cannot be derived from the configured URL.
	ErrInvalidSheetURL = errors.New("invalid Google Sheets URL format")

	// ErrMissingCredentials is returned when no service account key is configured.
	ErrMissingCredentials = errors.New("missing Google service account credentials")
)

// Backend stores rows in named worksheets. Row 1 of each worksheet is the header.
type Backend interface {
	// Worksheets lists worksheet titles in workbook order.
	Worksheets(ctx context.Context) ([]string, error)

	// CreateWorksheet adds an empty worksheet.
	CreateWorksheet(ctx context.Context, name string) error

	// ReadHeader returns row 1, or nil when it is empty.
	ReadHeader(ctx context.Context, sheet string) ([]string, error)

	// WriteHeader replaces row 1.
	WriteHeader(ctx context.Context, sheet string, header []string) error

	// AppendRows adds rows after the last used row in one call and returns
	// the 1-based row number of the first appended row.
	AppendRows(ctx context.Context, sheet string, rows [][]string) (int, error)

	// ReadRows returns every row below the header.
	ReadRows(ctx context.Context, sheet string) ([][]string, error)
}
