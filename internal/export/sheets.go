package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pisoheroes/internal/core"
)

// ValueWriter is the part of the Sheets values API the exporter uses.
type ValueWriter interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

// SheetsExporter replaces the contents of one tab with an expense export.
type SheetsExporter struct {
	values        ValueWriter
	spreadsheetID string
	sheet         string
}

// NewSheetsExporter authenticates with a service account file.
func NewSheetsExporter(ctx context.Context, credentialsFile, spreadsheetID, sheet string) (*SheetsExporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", sheet)
	return NewSheetsExporterWith(sheetsValues{svc: svc}, spreadsheetID, sheet), nil
}

// NewSheetsExporterWith uses an existing values client.
func NewSheetsExporterWith(values ValueWriter, spreadsheetID, sheet string) *SheetsExporter {
	if sheet == "" {
		sheet = "Expenses"
	}
	return &SheetsExporter{values: values, spreadsheetID: spreadsheetID, sheet: sheet}
}

// Export clears the tab and writes the header plus one row per expense. It
// returns the A1 range that was written.
func (s *SheetsExporter) Export(ctx context.Context, expenses []core.Expense) (string, error) {
	if err := s.values.Clear(ctx, s.spreadsheetID, s.sheet+"!A:D"); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", s.sheet, err)
	}

	values := make([][]any, 0, len(expenses)+1)
	values = append(values, toAny(Header))
	for _, e := range expenses {
		// Amounts go out as numbers so the sheet can sum them.
		values = append(values, []any{e.Date.String(), e.Category, e.Amount.Pesos(), e.Notes})
	}

	rng := fmt.Sprintf("%s!A1:D%d", s.sheet, len(values))
	if err := s.values.Update(ctx, s.spreadsheetID, rng, values); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Exported expenses to sheet", "sheet", s.sheet, "rows", len(expenses))
	return rng, nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := v.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
