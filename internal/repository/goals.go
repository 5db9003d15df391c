package repository

import (
	"context"
	"fmt"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

type Goals struct {
	c remote.Client
}

func goalFromRecord(r remote.Record) core.SavingsGoal {
	return core.SavingsGoal{
		ID:          r.Int64("id"),
		UserID:      r.Int64("user_id"),
		Name:        r.String("name"),
		Target:      core.Money{Cents: r.Int64("target_amount_cents")},
		Current:     core.Money{Cents: r.Int64("current_amount_cents")},
		Description: r.String("description"),
		TargetDate:  dateOf(r, "target_date"),
		Status:      core.GoalStatus(r.String("status")),
		CreatedAt:   r.Time("created_at"),
		CompletedAt: r.TimePtr("completed_at"),
	}
}

func goalsFromRecords(recs []remote.Record) []core.SavingsGoal {
	out := make([]core.SavingsGoal, 0, len(recs))
	for _, r := range recs {
		out = append(out, goalFromRecord(r))
	}
	return out
}

func goalChanges(g core.SavingsGoal) remote.Record {
	status := g.Status
	if status == "" {
		status = core.GoalActive
	}
	return remote.Record{
		"name":                 g.Name,
		"target_amount_cents":  g.Target.Cents,
		"current_amount_cents": g.Current.Cents,
		"description":          g.Description,
		"target_date":          dateValue(g.TargetDate),
		"status":               string(status),
		"completed_at":         timeValue(g.CompletedAt),
		"updated_at":           remote.Timestamp(time.Now()),
	}
}

func (s *Goals) Create(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	rec := goalChanges(g)
	rec["user_id"] = g.UserID
	rec["created_at"] = rec["updated_at"]
	out, err := s.c.Insert(ctx, tableGoals, rec)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create savings goal: %w", err)
	}
	return goalFromRecord(out), nil
}

// Save writes every mutable column of g.
func (s *Goals) Save(ctx context.Context, g core.SavingsGoal) error {
	n, err := s.c.Update(ctx, remote.From(tableGoals).Where(remote.Eq("id", g.ID), remote.Eq("user_id", g.UserID)), goalChanges(g))
	if err != nil {
		return fmt.Errorf("save savings goal %d: %w", g.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("save savings goal %d: %w", g.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Goals) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.c.Delete(ctx, remote.From(tableTransactions).Where(remote.Eq("goal_id", id))); err != nil {
		return fmt.Errorf("delete savings transactions of goal %d: %w", id, err)
	}
	n, err := s.c.Delete(ctx, remote.From(tableGoals).Where(remote.Eq("id", id), remote.Eq("user_id", userID)))
	if err != nil {
		return fmt.Errorf("delete savings goal %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete savings goal %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Goals) Get(ctx context.Context, userID, id int64) (core.SavingsGoal, error) {
	rec, err := one(s.c.Select(ctx, remote.From(tableGoals).Where(remote.Eq("id", id), remote.Eq("user_id", userID))))
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get savings goal %d: %w", id, err)
	}
	return goalFromRecord(rec), nil
}

// List returns the user's goals, active ones first, newest first within a
// status.
func (s *Goals) List(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	recs, err := s.c.Select(ctx, remote.From(tableGoals).
		Where(remote.Eq("user_id", userID)).
		OrderBy("status", false).
		OrderBy("created_at", true))
	if err != nil {
		return nil, fmt.Errorf("list savings goals: %w", err)
	}
	return goalsFromRecords(recs), nil
}

// ActiveWithDeadline returns active goals of every user that have a target
// date on or before horizon.
func (s *Goals) ActiveWithDeadline(ctx context.Context, horizon core.Date) ([]core.SavingsGoal, error) {
	recs, err := s.c.Select(ctx, remote.From(tableGoals).
		Where(remote.Eq("status", string(core.GoalActive)), remote.Neq("target_date", nil), remote.Lte("target_date", horizon.String())).
		OrderBy("target_date", false))
	if err != nil {
		return nil, fmt.Errorf("list goals with deadline: %w", err)
	}
	return goalsFromRecords(recs), nil
}

// AddTransaction records a contribution or reset against a goal.
func (s *Goals) AddTransaction(ctx context.Context, tx core.SavingsTransaction) (core.SavingsTransaction, error) {
	rec, err := s.c.Insert(ctx, tableTransactions, remote.Record{
		"goal_id":          tx.GoalID,
		"amount_cents":     tx.Amount.Cents,
		"transaction_type": tx.Type,
		"notes":            tx.Notes,
		"created_at":       remote.Timestamp(time.Now()),
	})
	if err != nil {
		return core.SavingsTransaction{}, fmt.Errorf("add savings transaction: %w", err)
	}
	return core.SavingsTransaction{
		ID:        rec.Int64("id"),
		GoalID:    rec.Int64("goal_id"),
		Amount:    core.Money{Cents: rec.Int64("amount_cents")},
		Type:      rec.String("transaction_type"),
		Notes:     rec.String("notes"),
		CreatedAt: rec.Time("created_at"),
	}, nil
}

func (s *Goals) Transactions(ctx context.Context, goalID int64) ([]core.SavingsTransaction, error) {
	recs, err := s.c.Select(ctx, remote.From(tableTransactions).
		Where(remote.Eq("goal_id", goalID)).
		OrderBy("id", true))
	if err != nil {
		return nil, fmt.Errorf("list savings transactions: %w", err)
	}
	out := make([]core.SavingsTransaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, core.SavingsTransaction{
			ID:        rec.Int64("id"),
			GoalID:    rec.Int64("goal_id"),
			Amount:    core.Money{Cents: rec.Int64("amount_cents")},
			Type:      rec.String("transaction_type"),
			Notes:     rec.String("notes"),
			CreatedAt: rec.Time("created_at"),
		})
	}
	return out, nil
}
