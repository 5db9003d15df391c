package repository

import (
	"context"
	"fmt"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

type Alerts struct {
	c remote.Client
}

func alertFromRecord(r remote.Record) core.BudgetAlert {
	return core.BudgetAlert{
		ID:               r.Int64("id"),
		UserID:           r.Int64("user_id"),
		Category:         r.String("category"),
		Limit:            core.Money{Cents: r.Int64("amount_limit_cents")},
		ThresholdPercent: r.Int("threshold_percent"),
		NotifyDashboard:  r.Bool("notify_dashboard"),
		NotifyEmail:      r.Bool("notify_email"),
		NotifyPush:       r.Bool("notify_push"),
		Active:           r.Bool("active"),
		CreatedAt:        r.Time("created_at"),
		UpdatedAt:        r.Time("updated_at"),
	}
}

func alertsFromRecords(recs []remote.Record) []core.BudgetAlert {
	out := make([]core.BudgetAlert, 0, len(recs))
	for _, r := range recs {
		out = append(out, alertFromRecord(r))
	}
	return out
}

func alertChanges(a core.BudgetAlert) remote.Record {
	return remote.Record{
		"category":           a.Category,
		"amount_limit_cents": a.Limit.Cents,
		"threshold_percent":  a.ThresholdPercent,
		"notify_dashboard":   a.NotifyDashboard,
		"notify_email":       a.NotifyEmail,
		"notify_push":        a.NotifyPush,
		"active":             a.Active,
		"updated_at":         remote.Timestamp(time.Now()),
	}
}

func (s *Alerts) Create(ctx context.Context, a core.BudgetAlert) (core.BudgetAlert, error) {
	rec := alertChanges(a)
	rec["user_id"] = a.UserID
	rec["created_at"] = rec["updated_at"]
	out, err := s.c.Insert(ctx, tableAlerts, rec)
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("create budget alert: %w", err)
	}
	return alertFromRecord(out), nil
}

func (s *Alerts) Update(ctx context.Context, a core.BudgetAlert) error {
	n, err := s.c.Update(ctx, remote.From(tableAlerts).Where(remote.Eq("id", a.ID), remote.Eq("user_id", a.UserID)), alertChanges(a))
	if err != nil {
		return fmt.Errorf("update budget alert %d: %w", a.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update budget alert %d: %w", a.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Alerts) Delete(ctx context.Context, userID, id int64) error {
	n, err := s.c.Delete(ctx, remote.From(tableAlerts).Where(remote.Eq("id", id), remote.Eq("user_id", userID)))
	if err != nil {
		return fmt.Errorf("delete budget alert %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete budget alert %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Alerts) Get(ctx context.Context, userID, id int64) (core.BudgetAlert, error) {
	rec, err := one(s.c.Select(ctx, remote.From(tableAlerts).Where(remote.Eq("id", id), remote.Eq("user_id", userID))))
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("get budget alert %d: %w", id, err)
	}
	return alertFromRecord(rec), nil
}

// Active returns the user's active alerts ordered by category.
func (s *Alerts) Active(ctx context.Context, userID int64) ([]core.BudgetAlert, error) {
	recs, err := s.c.Select(ctx, remote.From(tableAlerts).
		Where(remote.Eq("user_id", userID), remote.Eq("active", true)).
		OrderBy("category", false))
	if err != nil {
		return nil, fmt.Errorf("list active budget alerts: %w", err)
	}
	return alertsFromRecords(recs), nil
}

func (s *Alerts) All(ctx context.Context, userID int64) ([]core.BudgetAlert, error) {
	recs, err := s.c.Select(ctx, remote.From(tableAlerts).
		Where(remote.Eq("user_id", userID)).
		OrderBy("created_at", true))
	if err != nil {
		return nil, fmt.Errorf("list budget alerts: %w", err)
	}
	return alertsFromRecords(recs), nil
}

// ActiveForCategory returns the user's active alerts whose category matches
// case-insensitively.
func (s *Alerts) ActiveForCategory(ctx context.Context, userID int64, category string) ([]core.BudgetAlert, error) {
	all, err := s.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []core.BudgetAlert
	for _, a := range all {
		if core.SameCategory(a.Category, category) {
			out = append(out, a)
		}
	}
	return out, nil
}
