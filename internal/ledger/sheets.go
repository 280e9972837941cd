package ledger

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetStore is the ledger storage contract: read the first three columns of
// a sheet, and write one row starting at a given cell with USER_ENTERED
// interpretation (cells beginning with "=" become live formulas).
// This interface enables mocking and testing of sheet operations.
type SheetStore interface {
	// ReadColumns returns the occupied rows of "<sheetName>!A:C" in order.
	// Rows may be shorter than three cells when trailing cells are empty.
	ReadColumns(ctx context.Context, sheetName string) ([][]string, error)

	// WriteRow writes row values into sheetName starting at cell (A1
	// notation, e.g. "A7").
	WriteRow(ctx context.Context, sheetName, cell string, row []any) error
}

// GoogleSheetStore is the concrete SheetStore backed by the Google Sheets v4
// API, bound to a single spreadsheet document.
type GoogleSheetStore struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewGoogleSheetStore authenticates with a service-account key file,
// impersonating subject via domain-wide delegation when subject is
// non-empty, scoped to spreadsheet access only.
func NewGoogleSheetStore(ctx context.Context, keyFile, subject, spreadsheetID string) (*GoogleSheetStore, error) {
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets key file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(keyData, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets key file: %w", err)
	}
	conf.Subject = subject

	service, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &GoogleSheetStore{service: service, spreadsheetID: spreadsheetID}, nil
}

// ReadColumns implements SheetStore.
func (g *GoogleSheetStore) ReadColumns(ctx context.Context, sheetName string) ([][]string, error) {
	resp, err := g.service.Spreadsheets.Values.
		Get(g.spreadsheetID, fmt.Sprintf("%s!A:C", sheetName)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheetName, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, cells := range resp.Values {
		row := make([]string, len(cells))
		for j, cell := range cells {
			if cell != nil {
				row[j] = fmt.Sprint(cell)
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// WriteRow implements SheetStore.
func (g *GoogleSheetStore) WriteRow(ctx context.Context, sheetName, cell string, row []any) error {
	data := &sheets.ValueRange{Values: [][]any{row}}

	_, err := g.service.Spreadsheets.Values.
		Update(g.spreadsheetID, fmt.Sprintf("%s!%s", sheetName, cell), data).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s!%s: %w", sheetName, cell, err)
	}
	return nil
}

// Ensure GoogleSheetStore implements SheetStore.
var _ SheetStore = (*GoogleSheetStore)(nil)
