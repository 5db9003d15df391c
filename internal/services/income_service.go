package services

import (
	"context"
	"fmt"
	"log/slog"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
)

type IncomeStore interface {
	Create(ctx context.Context, in core.DailyIncome) (core.DailyIncome, error)
	Delete(ctx context.Context, userID, id int64) error
	Recent(ctx context.Context, userID int64, limit int) ([]core.DailyIncome, error)
}

type IncomeService struct {
	store IncomeStore
	audit audit.Recorder
}

func NewIncomeService(store IncomeStore) *IncomeService {
	return &IncomeService{store: store, audit: audit.Discard}
}

func (s *IncomeService) SetAuditor(r audit.Recorder) { s.audit = audit.Or(r) }

func (s *IncomeService) AddIncome(ctx context.Context, in core.DailyIncome) (core.DailyIncome, error) {
	if err := in.Validate(); err != nil {
		return core.DailyIncome{}, err
	}
	saved, err := s.store.Create(ctx, in)
	if err != nil {
		return core.DailyIncome{}, fmt.Errorf("save income: %w", err)
	}
	slog.InfoContext(ctx, "Income added",
		"user_id", saved.UserID,
		"id", saved.ID,
		"amount_cents", saved.Amount.Cents,
		"source", saved.Source,
		"date", saved.Date.String())
	s.audit.Record(ctx, audit.Entry(saved.UserID, core.AuditCreate, core.ResourceIncome, saved.ID, map[string]any{
		"amount_cents": saved.Amount.Cents,
		"source":       saved.Source,
		"date":         saved.Date.String(),
	}))
	return saved, nil
}

func (s *IncomeService) DeleteIncome(ctx context.Context, userID, id int64) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Income deleted", "user_id", userID, "id", id)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditDelete, core.ResourceIncome, id, nil))
	return nil
}

func (s *IncomeService) RecentIncome(ctx context.Context, userID int64, limit int) ([]core.DailyIncome, error) {
	return s.store.Recent(ctx, userID, limit)
}
