package repository

import (
	"context"
	"fmt"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

type Expenses struct {
	c remote.Client
}

func expenseFromRecord(r remote.Record) core.Expense {
	return core.Expense{
		ID:        r.Int64("id"),
		UserID:    r.Int64("user_id"),
		Amount:    core.Money{Cents: r.Int64("amount_cents")},
		Category:  r.String("category"),
		Date:      dateOf(r, "date"),
		Notes:     r.String("notes"),
		CreatedAt: r.Time("created_at"),
		UpdatedAt: r.Time("updated_at"),
	}
}

func expensesFromRecords(recs []remote.Record) []core.Expense {
	out := make([]core.Expense, 0, len(recs))
	for _, r := range recs {
		out = append(out, expenseFromRecord(r))
	}
	return out
}

func (e *Expenses) Create(ctx context.Context, exp core.Expense) (core.Expense, error) {
	now := remote.Timestamp(time.Now())
	rec, err := e.c.Insert(ctx, tableExpenses, remote.Record{
		"user_id":      exp.UserID,
		"amount_cents": exp.Amount.Cents,
		"category":     exp.Category,
		"date":         exp.Date.String(),
		"notes":        exp.Notes,
		"created_at":   now,
		"updated_at":   now,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return expenseFromRecord(rec), nil
}

// Update rewrites amount, category, date and notes of the user's expense.
func (e *Expenses) Update(ctx context.Context, exp core.Expense) error {
	n, err := e.c.Update(ctx, remote.From(tableExpenses).Where(remote.Eq("id", exp.ID), remote.Eq("user_id", exp.UserID)), remote.Record{
		"amount_cents": exp.Amount.Cents,
		"category":     exp.Category,
		"date":         exp.Date.String(),
		"notes":        exp.Notes,
		"updated_at":   remote.Timestamp(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("update expense %d: %w", exp.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update expense %d: %w", exp.ID, core.ErrNotFound)
	}
	return nil
}

func (e *Expenses) Delete(ctx context.Context, userID, id int64) error {
	n, err := e.c.Delete(ctx, remote.From(tableExpenses).Where(remote.Eq("id", id), remote.Eq("user_id", userID)))
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete expense %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (e *Expenses) Get(ctx context.Context, userID, id int64) (core.Expense, error) {
	rec, err := one(e.c.Select(ctx, remote.From(tableExpenses).Where(remote.Eq("id", id), remote.Eq("user_id", userID))))
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return expenseFromRecord(rec), nil
}

// Recent returns the newest expenses by date, then by id.
func (e *Expenses) Recent(ctx context.Context, userID int64, limit int) ([]core.Expense, error) {
	recs, err := e.c.Select(ctx, remote.From(tableExpenses).
		Where(remote.Eq("user_id", userID)).
		OrderBy("date", true).
		OrderBy("id", true).
		Take(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent expenses: %w", err)
	}
	return expensesFromRecords(recs), nil
}

// Between returns expenses dated from..to inclusive, oldest first.
func (e *Expenses) Between(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error) {
	recs, err := e.c.Select(ctx, remote.From(tableExpenses).
		Where(remote.Eq("user_id", userID), remote.Gte("date", from.String()), remote.Lte("date", to.String())).
		OrderBy("date", false).
		OrderBy("id", false))
	if err != nil {
		return nil, fmt.Errorf("list expenses %s..%s: %w", from, to, err)
	}
	return expensesFromRecords(recs), nil
}

// Until returns every expense dated on or before to, oldest first.
func (e *Expenses) Until(ctx context.Context, userID int64, to core.Date) ([]core.Expense, error) {
	recs, err := e.c.Select(ctx, remote.From(tableExpenses).
		Where(remote.Eq("user_id", userID), remote.Lte("date", to.String())).
		OrderBy("date", false))
	if err != nil {
		return nil, fmt.Errorf("list expenses until %s: %w", to, err)
	}
	return expensesFromRecords(recs), nil
}

// CategorySpend totals the user's expenses in category between from and to
// inclusive. Categories compare case-insensitively.
func (e *Expenses) CategorySpend(ctx context.Context, userID int64, category string, from, to core.Date) (core.Money, error) {
	expenses, err := e.Between(ctx, userID, from, to)
	if err != nil {
		return core.Money{}, err
	}
	var total core.Money
	for _, exp := range expenses {
		if core.SameCategory(exp.Category, category) {
			total = total.Add(exp.Amount)
		}
	}
	return total, nil
}
