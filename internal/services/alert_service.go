package services

import (
	"context"
	"fmt"
	"log/slog"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
)

type AlertStore interface {
	Create(ctx context.Context, a core.BudgetAlert) (core.BudgetAlert, error)
	Update(ctx context.Context, a core.BudgetAlert) error
	Delete(ctx context.Context, userID, id int64) error
	Get(ctx context.Context, userID, id int64) (core.BudgetAlert, error)
	All(ctx context.Context, userID int64) ([]core.BudgetAlert, error)
	ActiveForCategory(ctx context.Context, userID int64, category string) ([]core.BudgetAlert, error)
}

// AlertService manages budget alert configuration. A user has at most one
// active alert per category.
type AlertService struct {
	store AlertStore
	audit audit.Recorder
}

func NewAlertService(store AlertStore) *AlertService {
	return &AlertService{store: store, audit: audit.Discard}
}

func (s *AlertService) SetAuditor(r audit.Recorder) { s.audit = audit.Or(r) }

func (s *AlertService) CreateAlert(ctx context.Context, a core.BudgetAlert) (core.BudgetAlert, error) {
	a.Category = core.NormalizeCategory(a.Category)
	if err := a.Validate(); err != nil {
		return core.BudgetAlert{}, err
	}
	if a.Active {
		if err := s.ensureUnique(ctx, a); err != nil {
			return core.BudgetAlert{}, err
		}
	}

	saved, err := s.store.Create(ctx, a)
	if err != nil {
		return core.BudgetAlert{}, err
	}
	slog.InfoContext(ctx, "Budget alert created",
		"user_id", saved.UserID,
		"alert_id", saved.ID,
		"category", saved.Category,
		"amount_cents", saved.Limit.Cents,
		"threshold", saved.ThresholdPercent)
	s.audit.Record(ctx, audit.Entry(saved.UserID, core.AuditCreate, core.ResourceAlert, saved.ID, map[string]any{
		"category":    saved.Category,
		"limit_cents": saved.Limit.Cents,
		"threshold":   saved.ThresholdPercent,
	}))
	return saved, nil
}

func (s *AlertService) UpdateAlert(ctx context.Context, a core.BudgetAlert) error {
	a.Category = core.NormalizeCategory(a.Category)
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Active {
		if err := s.ensureUnique(ctx, a); err != nil {
			return err
		}
	}
	if err := s.store.Update(ctx, a); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Budget alert updated", "user_id", a.UserID, "alert_id", a.ID, "active", a.Active)
	s.audit.Record(ctx, audit.Entry(a.UserID, core.AuditUpdate, core.ResourceAlert, a.ID, map[string]any{
		"category":    a.Category,
		"limit_cents": a.Limit.Cents,
		"active":      a.Active,
	}))
	return nil
}

// ensureUnique rejects a when another active alert covers the same category.
func (s *AlertService) ensureUnique(ctx context.Context, a core.BudgetAlert) error {
	existing, err := s.store.ActiveForCategory(ctx, a.UserID, a.Category)
	if err != nil {
		return fmt.Errorf("check existing alerts: %w", err)
	}
	for _, e := range existing {
		if e.ID != a.ID {
			return fmt.Errorf("%s: %w", a.Category, core.ErrDuplicateAlert)
		}
	}
	return nil
}

func (s *AlertService) DeleteAlert(ctx context.Context, userID, id int64) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Budget alert deleted", "user_id", userID, "alert_id", id)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditDelete, core.ResourceAlert, id, nil))
	return nil
}

func (s *AlertService) GetAlert(ctx context.Context, userID, id int64) (core.BudgetAlert, error) {
	return s.store.Get(ctx, userID, id)
}

func (s *AlertService) ListAlerts(ctx context.Context, userID int64) ([]core.BudgetAlert, error) {
	return s.store.All(ctx, userID)
}
