package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"nicayne/internal/logger"
)

var (
	spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	bareIDPattern        = regexp.MustCompile(`^[a-zA-Z0-9-_]{20,}$`)
	rangeRowPattern      = regexp.MustCompile(`![A-Z]+(\d+)`)
)

// GoogleBackend stores rows in a Google Sheets spreadsheet.
type GoogleBackend struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewGoogleBackend authenticates with a service account key and opens the
// spreadsheet identified by sheetURL (a full URL or a bare spreadsheet ID).
func NewGoogleBackend(ctx context.Context, sheetURL string, credentials []byte) (*GoogleBackend, error) {
	const op = "NewGoogleBackend"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	config, err := google.JWTConfigFromJSON(credentials, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return NewGoogleBackendWithService(sheetsService, spreadsheetID), nil
}

// NewGoogleBackendWithService wraps an existing Sheets service.
func NewGoogleBackendWithService(svc *sheets.Service, spreadsheetID string) *GoogleBackend {
	log := logger.WithComponent("sheets")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Using spreadsheet")

	return &GoogleBackend{
		sheetsService: svc,
		spreadsheetID: spreadsheetID,
		log:           log,
	}
}

// LoadCredentials returns the service account key. key may be inline JSON or
// a file path; when empty GOOGLE_APPLICATION_CREDENTIALS and then
// GOOGLE_CREDENTIALS are used.
func LoadCredentials(key string) ([]byte, error) {
	const op = "LoadCredentials"

	key = strings.TrimSpace(key)
	switch {
	case strings.HasPrefix(key, "{"):
		return []byte(key), nil
	case key != "":
		creds, err := os.ReadFile(key)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
		return creds, nil
	}

	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
		return creds, nil
	}
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		return []byte(credsJSON), nil
	}
	return nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL or accepts a bare ID.
func extractSpreadsheetID(url string) (string, error) {
	url = strings.TrimSpace(url)
	if matches := spreadsheetIDPattern.FindStringSubmatch(url); len(matches) == 2 {
		return matches[1], nil
	}
	if bareIDPattern.MatchString(url) {
		return url, nil
	}
	return "", ErrInvalidSheetURL
}

// a1 quotes a worksheet title for A1 notation.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

// columnName converts a 1-based column index to its letter (1 -> A, 27 -> AA).
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

func toValues(rows [][]string) [][]interface{} {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		values = append(values, cells)
	}
	return values
}

func fromValues(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		row := make([]string, len(v))
		for i, cell := range v {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// Worksheets implements Backend.
func (g *GoogleBackend) Worksheets(ctx context.Context) ([]string, error) {
	const op = "Worksheets"

	spreadsheet, err := g.sheetsService.Spreadsheets.Get(g.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	titles := make([]string, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		titles = append(titles, sheet.Properties.Title)
	}
	return titles, nil
}

func (g *GoogleBackend) sheetID(ctx context.Context, name string) (int64, error) {
	spreadsheet, err := g.sheetsService.Spreadsheets.Get(g.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == name {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoWorksheet, name)
}

// CreateWorksheet implements Backend.
func (g *GoogleBackend) CreateWorksheet(ctx context.Context, name string) error {
	const op = "CreateWorksheet"

	g.log.Info().Str("sheet", name).Msg("Creating new sheet")

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}}},
		},
	}
	if _, err := g.sheetsService.Spreadsheets.BatchUpdate(g.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to create sheet: %w", op, err)
	}
	return nil
}

// ReadHeader implements Backend.
func (g *GoogleBackend) ReadHeader(ctx context.Context, sheet string) ([]string, error) {
	const op = "ReadHeader"

	resp, err := g.sheetsService.Spreadsheets.Values.Get(g.spreadsheetID, a1(sheet, "1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return nil, nil
	}
	return fromValues(resp.Values)[0], nil
}

// WriteHeader implements Backend. Stale cells to the right of the new header are cleared.
func (g *GoogleBackend) WriteHeader(ctx context.Context, sheet string, header []string) error {
	const op = "WriteHeader"

	if _, err := g.sheetsService.Spreadsheets.Values.Clear(g.spreadsheetID, a1(sheet, "1:1"),
		&sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to clear headers: %w", op, err)
	}

	headerRange := a1(sheet, "A1:"+columnName(len(header))+"1")
	valueRange := &sheets.ValueRange{Values: toValues([][]string{header})}
	_, err := g.sheetsService.Spreadsheets.Values.Update(g.spreadsheetID, headerRange, valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := g.formatHeaders(ctx, sheet, len(header)); err != nil {
		g.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and auto-sizes the columns.
func (g *GoogleBackend) formatHeaders(ctx context.Context, sheet string, columns int) error {
	const op = "formatHeaders"

	sheetID, err := g.sheetID(ctx, sheet)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := g.sheetsService.Spreadsheets.BatchUpdate(g.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}

// AppendRows implements Backend. Values are written RAW so identifiers such as 0012 stay text.
func (g *GoogleBackend) AppendRows(ctx context.Context, sheet string, rows [][]string) (int, error) {
	const op = "AppendRows"

	if len(rows) == 0 {
		return 0, nil
	}

	resp, err := g.sheetsService.Spreadsheets.Values.Append(g.spreadsheetID, a1(sheet, "A1"),
		&sheets.ValueRange{Values: toValues(rows)}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	first := 0
	if resp.Updates != nil {
		first = firstRowOfRange(resp.Updates.UpdatedRange)
		if int(resp.Updates.UpdatedRows) != len(rows) {
			g.log.Warn().
				Int64("updated_rows", resp.Updates.UpdatedRows).
				Int("sent_rows", len(rows)).
				Msg("Sheets reported a different row count than sent")
		}
	}

	g.log.Info().
		Int("rows_written", len(rows)).
		Int("first_row", first).
		Msg("Successfully appended rows to Google Sheet")

	return first, nil
}

// firstRowOfRange reads the start row of an A1 range such as 'Sheet'!A5:O7.
func firstRowOfRange(updatedRange string) int {
	m := rangeRowPattern.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// ReadRows implements Backend.
func (g *GoogleBackend) ReadRows(ctx context.Context, sheet string) ([][]string, error) {
	const op = "ReadRows"

	resp, err := g.sheetsService.Spreadsheets.Values.Get(g.spreadsheetID, a1(sheet, "A2:ZZ")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read rows: %w", op, err)
	}
	return fromValues(resp.Values), nil
}
