package repository

import (
	"context"
	"fmt"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

type Settings struct {
	c remote.Client
}

// Get returns core.ErrNotFound when the user never configured an allowance.
func (s *Settings) Get(ctx context.Context, userID int64) (core.UserSettings, error) {
	rec, err := one(s.c.Select(ctx, remote.From(tableSettings).Where(remote.Eq("user_id", userID))))
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return core.UserSettings{
		UserID:           rec.Int64("user_id"),
		MonthlyAllowance: core.Money{Cents: rec.Int64("monthly_allowance_cents")},
		UpdatedAt:        rec.Time("updated_at"),
	}, nil
}

func (s *Settings) Save(ctx context.Context, us core.UserSettings) (core.UserSettings, error) {
	rec, err := s.c.Upsert(ctx, tableSettings, remote.Record{
		"user_id":                 us.UserID,
		"monthly_allowance_cents": us.MonthlyAllowance.Cents,
		"updated_at":              remote.Timestamp(time.Now()),
	}, "user_id")
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("save settings: %w", err)
	}
	return core.UserSettings{
		UserID:           rec.Int64("user_id"),
		MonthlyAllowance: core.Money{Cents: rec.Int64("monthly_allowance_cents")},
		UpdatedAt:        rec.Time("updated_at"),
	}, nil
}
