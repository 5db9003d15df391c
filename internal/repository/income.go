package repository

import (
	"context"
	"fmt"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

type Income struct {
	c remote.Client
}

func incomeFromRecord(r remote.Record) core.DailyIncome {
	return core.DailyIncome{
		ID:        r.Int64("id"),
		UserID:    r.Int64("user_id"),
		Amount:    core.Money{Cents: r.Int64("amount_cents")},
		Source:    core.IncomeSource(r.String("source")),
		Date:      dateOf(r, "date"),
		Notes:     r.String("notes"),
		CreatedAt: r.Time("created_at"),
	}
}

func incomeFromRecords(recs []remote.Record) []core.DailyIncome {
	out := make([]core.DailyIncome, 0, len(recs))
	for _, r := range recs {
		out = append(out, incomeFromRecord(r))
	}
	return out
}

func (s *Income) Create(ctx context.Context, in core.DailyIncome) (core.DailyIncome, error) {
	rec, err := s.c.Insert(ctx, tableIncome, remote.Record{
		"user_id":      in.UserID,
		"amount_cents": in.Amount.Cents,
		"source":       string(in.Source),
		"date":         in.Date.String(),
		"notes":        in.Notes,
		"created_at":   remote.Timestamp(time.Now()),
	})
	if err != nil {
		return core.DailyIncome{}, fmt.Errorf("create income: %w", err)
	}
	return incomeFromRecord(rec), nil
}

func (s *Income) Delete(ctx context.Context, userID, id int64) error {
	n, err := s.c.Delete(ctx, remote.From(tableIncome).Where(remote.Eq("id", id), remote.Eq("user_id", userID)))
	if err != nil {
		return fmt.Errorf("delete income %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete income %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Income) Recent(ctx context.Context, userID int64, limit int) ([]core.DailyIncome, error) {
	recs, err := s.c.Select(ctx, remote.From(tableIncome).
		Where(remote.Eq("user_id", userID)).
		OrderBy("date", true).
		OrderBy("id", true).
		Take(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent income: %w", err)
	}
	return incomeFromRecords(recs), nil
}

// Until returns every income entry dated on or before to, oldest first.
func (s *Income) Until(ctx context.Context, userID int64, to core.Date) ([]core.DailyIncome, error) {
	recs, err := s.c.Select(ctx, remote.From(tableIncome).
		Where(remote.Eq("user_id", userID), remote.Lte("date", to.String())).
		OrderBy("date", false))
	if err != nil {
		return nil, fmt.Errorf("list income until %s: %w", to, err)
	}
	return incomeFromRecords(recs), nil
}
