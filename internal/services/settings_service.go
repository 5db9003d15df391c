package services

import (
	"context"
	"errors"
	"log/slog"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
)

type SettingsStore interface {
	Get(ctx context.Context, userID int64) (core.UserSettings, error)
	Save(ctx context.Context, us core.UserSettings) (core.UserSettings, error)
}

type SettingsService struct {
	store SettingsStore
	audit audit.Recorder
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store, audit: audit.Discard}
}

func (s *SettingsService) SetAuditor(r audit.Recorder) { s.audit = audit.Or(r) }

// MonthlyAllowance returns the configured allowance, or zero when the user
// never saved one.
func (s *SettingsService) MonthlyAllowance(ctx context.Context, userID int64) (core.Money, error) {
	us, err := s.store.Get(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, err
	}
	return us.MonthlyAllowance, nil
}

// SetMonthlyAllowance upserts the allowance. Zero is allowed.
func (s *SettingsService) SetMonthlyAllowance(ctx context.Context, userID int64, amount core.Money) (core.UserSettings, error) {
	if amount.Cents < 0 {
		return core.UserSettings{}, core.ErrInvalidAmount
	}
	if amount.Cents > core.MaxAmountCents {
		return core.UserSettings{}, core.ErrAmountTooLarge
	}
	saved, err := s.store.Save(ctx, core.UserSettings{UserID: userID, MonthlyAllowance: amount})
	if err != nil {
		return core.UserSettings{}, err
	}
	slog.InfoContext(ctx, "Monthly allowance saved", "user_id", userID, "amount_cents", amount.Cents)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditUpdate, core.ResourceAllowance, userID, map[string]any{
		"amount_cents": amount.Cents,
	}))
	return saved, nil
}
