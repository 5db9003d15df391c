// Package export writes a user's expenses out of the app, either as CSV or
// into a Google Sheets tab.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"pisoheroes/internal/core"
)

// Header is the column row shared by every export format.
var Header = []string{"Date", "Category", "Amount", "Notes"}

// ExpenseRanger loads the expenses to export.
type ExpenseRanger interface {
	Between(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error)
}

// Rows converts expenses to string rows in Header order. Amounts are plain
// decimals so spreadsheets parse them as numbers.
func Rows(expenses []core.Expense) [][]string {
	rows := make([][]string, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []string{e.Date.String(), e.Category, e.Amount.Decimal(), e.Notes})
	}
	return rows
}

// WriteCSV writes the header and one line per expense.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(expenses)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// Range loads a user's expenses for [from, to], oldest first.
func Range(ctx context.Context, store ExpenseRanger, userID int64, from, to core.Date) ([]core.Expense, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("export range %s..%s: %w", from, to, core.ErrInvalidDate)
	}
	expenses, err := store.Between(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	return expenses, nil
}

// Filename is the download name for a CSV export of [from, to].
func Filename(from, to core.Date) string {
	return fmt.Sprintf("expenses_%s_%s.csv", from, to)
}
