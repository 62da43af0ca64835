package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-dEf_GhIjKlMnOpQrStUvWxYz/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-dEf_GhIjKlMnOpQrStUvWxYz", id)

	id, err = extractSpreadsheetID("1AbC-dEf_GhIjKlMnOpQrStUvWxYz")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-dEf_GhIjKlMnOpQrStUvWxYz", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.ErrorIs(t, err, ErrInvalidSheetURL)
}

func TestA1Helpers(t *testing.T) {
	assert.Equal(t, "A", columnName(1))
	assert.Equal(t, "O", columnName(15))
	assert.Equal(t, "Z", columnName(26))
	assert.Equal(t, "AA", columnName(27))
	assert.Equal(t, "'Bob''s Sheet'!A1", a1("Bob's Sheet", "A1"))

	assert.Equal(t, 5, firstRowOfRange("'UNPROCESSED_INVENTORY'!A5:O7"))
	assert.Equal(t, 12, firstRowOfRange("Sheet1!A12:O12"))
	assert.Equal(t, 0, firstRowOfRange(""))
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_CREDENTIALS", "")

	creds, err := LoadCredentials(`{"type": "service_account"}`)
	require.NoError(t, err)
	assert.Contains(t, string(creds), "service_account")

	_, err = LoadCredentials("")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	t.Setenv("GOOGLE_CREDENTIALS", `{"type": "env"}`)
	creds, err = LoadCredentials("")
	require.NoError(t, err)
	assert.Contains(t, string(creds), "env")
}

func fakeSheetsAPI(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":append"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"spreadsheetId": "sheet-id",
				"updates": map[string]interface{}{
					"updatedRange": "'UNPROCESSED_INVENTORY'!A7:O8",
					"updatedRows":  2,
				},
			})
		case strings.HasSuffix(r.URL.Path, "/spreadsheets/sheet-id"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"spreadsheetId": "sheet-id",
				"sheets": []map[string]interface{}{
					{"properties": map[string]interface{}{"title": "UNPROCESSED_INVENTORY", "sheetId": 0}},
					{"properties": map[string]interface{}{"title": "PROCESSED", "sheetId": 1}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestGoogleBackendAgainstFakeAPI(t *testing.T) {
	srv := fakeSheetsAPI(t)
	defer srv.Close()

	ctx := context.Background()
	svc, err := sheets.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	g := NewGoogleBackendWithService(svc, "sheet-id")

	names, err := g.Worksheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"UNPROCESSED_INVENTORY", "PROCESSED"}, names)

	first, err := g.AppendRows(ctx, "UNPROCESSED_INVENTORY", [][]string{{"a"}, {"b"}})
	require.NoError(t, err)
	assert.Equal(t, 7, first)
}
