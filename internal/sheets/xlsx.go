package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"nicayne/internal/logger"
)

// XLSXBackend stores rows in a local workbook. Every call opens, edits and
// saves the file under a mutex, so one process may share it between jobs.
type XLSXBackend struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

// NewXLSXBackend creates a backend for path. The workbook is created on first write.
func NewXLSXBackend(path string) *XLSXBackend {
	return &XLSXBackend{
		path: path,
		log:  logger.WithComponent("sheets-xlsx"),
	}
}

// Path returns the workbook path.
func (x *XLSXBackend) Path() string { return x.path }

// open returns the workbook, or nil when it does not exist yet.
func (x *XLSXBackend) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(x.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", x.path, err)
	}
	return f, nil
}

func (x *XLSXBackend) save(f *excelize.File) error {
	if dir := filepath.Dir(x.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := f.SaveAs(x.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", x.path, err)
	}
	return nil
}

func hasSheet(f *excelize.File, name string) bool {
	for _, s := range f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

// Worksheets implements Backend. A missing workbook has no worksheets.
func (x *XLSXBackend) Worksheets(ctx context.Context) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open()
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// CreateWorksheet implements Backend. The first worksheet of a new workbook
// replaces excelize's default sheet.
func (x *XLSXBackend) CreateWorksheet(ctx context.Context, name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open()
	if err != nil {
		return err
	}
	if f == nil {
		f = excelize.NewFile()
		defer f.Close()
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return fmt.Errorf("create worksheet %s: %w", name, err)
		}
		x.log.Info().Str("path", x.path).Str("sheet", name).Msg("Creating workbook")
		return x.save(f)
	}
	defer f.Close()

	if hasSheet(f, name) {
		return nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create worksheet %s: %w", name, err)
	}
	return x.save(f)
}

func (x *XLSXBackend) rows(sheet string) ([][]string, error) {
	f, err := x.open()
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoWorksheet, sheet)
	}
	defer f.Close()

	if !hasSheet(f, sheet) {
		return nil, fmt.Errorf("%w: %s", ErrNoWorksheet, sheet)
	}
	return f.GetRows(sheet)
}

// ReadHeader implements Backend.
func (x *XLSXBackend) ReadHeader(ctx context.Context, sheet string) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.rows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ReadRows implements Backend.
func (x *XLSXBackend) ReadRows(ctx context.Context, sheet string) ([][]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.rows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return [][]string{}, nil
	}
	return rows[1:], nil
}

func (x *XLSXBackend) withSheet(sheet string, fn func(f *excelize.File) error) error {
	f, err := x.open()
	if err != nil {
		return err
	}
	if f == nil || !hasSheet(f, sheet) {
		if f != nil {
			f.Close()
		}
		return fmt.Errorf("%w: %s", ErrNoWorksheet, sheet)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	return x.save(f)
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

// WriteHeader implements Backend.
func (x *XLSXBackend) WriteHeader(ctx context.Context, sheet string, header []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.withSheet(sheet, func(f *excelize.File) error {
		// Clear any longer previous header.
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			for i := len(header); i < len(rows[0]); i++ {
				cell, _ := excelize.CoordinatesToCellName(i+1, 1)
				if err := f.SetCellValue(sheet, cell, ""); err != nil {
					return err
				}
			}
		}

		cells := toCells(header)
		if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		return f.SetRowStyle(sheet, 1, 1, style)
	})
}

// AppendRows implements Backend.
func (x *XLSXBackend) AppendRows(ctx context.Context, sheet string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	first := 0
	err := x.withSheet(sheet, func(f *excelize.File) error {
		existing, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		first = len(existing) + 1
		if first < 2 {
			first = 2
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, first+i)
			if err != nil {
				return err
			}
			cells := toCells(row)
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("AppendRows: %w", err)
	}
	return first, nil
}
