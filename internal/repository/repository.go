// Package repository maps the remote store's tables onto core types.
package repository

import (
	"errors"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

const (
	tableUsers        = "users"
	tableExpenses     = "expenses"
	tableAlerts       = "budget_alerts"
	tableIncome       = "daily_income"
	tableGoals        = "savings_goals"
	tableTransactions = "savings_transactions"
	tableSettings     = "user_settings"
	tableReminders    = "reminders"
)

// Store bundles the per-table gateways over one remote client.
type Store struct {
	Users     *Users
	Expenses  *Expenses
	Alerts    *Alerts
	Income    *Income
	Goals     *Goals
	Settings  *Settings
	Reminders *Reminders

	client remote.Client
}

func New(c remote.Client) *Store {
	return &Store{
		Users:     &Users{c: c},
		Expenses:  &Expenses{c: c},
		Alerts:    &Alerts{c: c},
		Income:    &Income{c: c},
		Goals:     &Goals{c: c},
		Settings:  &Settings{c: c},
		Reminders: &Reminders{c: c},
		client:    c,
	}
}

// Client returns the underlying remote client.
func (s *Store) Client() remote.Client { return s.client }

func dateValue(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func dateOf(r remote.Record, key string) core.Date {
	t := r.Time(key)
	if t.IsZero() {
		return core.Date{}
	}
	return core.DateOf(t)
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return remote.Timestamp(*t)
}

func one(recs []remote.Record, err error) (remote.Record, error) {
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, core.ErrNotFound
	}
	return recs[0], nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
