// Package wallet derives the rolling daily wallet balance. Each day opens
// with the previous day's closing balance, receives its share of the monthly
// allowance plus any extra income, and closes after that day's expenses.
// A closing balance never goes below zero, so overspending one day does not
// eat into the next.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pisoheroes/internal/core"
)

type ExpenseLister interface {
	Until(ctx context.Context, userID int64, to core.Date) ([]core.Expense, error)
}

type IncomeLister interface {
	Until(ctx context.Context, userID int64, to core.Date) ([]core.DailyIncome, error)
}

type SettingsGetter interface {
	Get(ctx context.Context, userID int64) (core.UserSettings, error)
}

// Summary is the wallet state of one day.
type Summary struct {
	Date             core.Date
	MonthlyAllowance core.Money
	OpeningBalance   core.Money
	DailyAllowance   core.Money
	DailyIncome      core.Money
	TodayExpenses    core.Money
	TotalAvailable   core.Money
	ClosingBalance   core.Money
	// Overspent is how far expenses went past what was available.
	Overspent   core.Money
	PercentUsed float64
}

// Payload is the JSON form of a Summary. Amounts are decimal strings.
type Payload struct {
	Date             string  `json:"date"`
	MonthlyAllowance string  `json:"monthly_allowance"`
	OpeningBalance   string  `json:"opening_balance"`
	DailyAllowance   string  `json:"daily_allowance"`
	DailyIncome      string  `json:"daily_income"`
	TodayExpenses    string  `json:"today_expenses"`
	TotalAvailable   string  `json:"total_available"`
	ClosingBalance   string  `json:"closing_balance"`
	Overspent        string  `json:"overspent"`
	PercentUsed      float64 `json:"percent_used"`
}

func (s Summary) Payload() Payload {
	return Payload{
		Date:             s.Date.String(),
		MonthlyAllowance: s.MonthlyAllowance.Decimal(),
		OpeningBalance:   s.OpeningBalance.Decimal(),
		DailyAllowance:   s.DailyAllowance.Decimal(),
		DailyIncome:      s.DailyIncome.Decimal(),
		TodayExpenses:    s.TodayExpenses.Decimal(),
		TotalAvailable:   s.TotalAvailable.Decimal(),
		ClosingBalance:   s.ClosingBalance.Decimal(),
		Overspent:        s.Overspent.Decimal(),
		PercentUsed:      s.PercentUsed,
	}
}

// Calculator computes wallet summaries from the remote store.
type Calculator struct {
	expenses ExpenseLister
	income   IncomeLister
	settings SettingsGetter
}

func NewCalculator(expenses ExpenseLister, income IncomeLister, settings SettingsGetter) *Calculator {
	return &Calculator{expenses: expenses, income: income, settings: settings}
}

// Balance returns the wallet summary of userID on date.
func (c *Calculator) Balance(ctx context.Context, userID int64, date core.Date) (Summary, error) {
	if err := date.Validate(); err != nil {
		return Summary{}, err
	}
	monthly, err := c.monthlyAllowance(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	expenses, err := c.expenses.Until(ctx, userID, date)
	if err != nil {
		return Summary{}, fmt.Errorf("load expenses: %w", err)
	}
	income, err := c.income.Until(ctx, userID, date)
	if err != nil {
		return Summary{}, fmt.Errorf("load income: %w", err)
	}

	return Compute(date, monthly, expenses, income), nil
}

func (c *Calculator) monthlyAllowance(ctx context.Context, userID int64) (core.Money, error) {
	s, err := c.settings.Get(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "No allowance configured, using zero", "user_id", userID)
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("load allowance: %w", err)
	}
	return s.MonthlyAllowance, nil
}

// DailyAllowance splits monthly across the days of d's month, rounding half
// up to the cent.
func DailyAllowance(monthly core.Money, d core.Date) core.Money {
	if monthly.Cents <= 0 {
		return core.Money{}
	}
	days := int64(d.DaysInMonth())
	return core.Money{Cents: (monthly.Cents*2 + days) / (2 * days)}
}

// Compute folds the wallet forward from the first day with any activity up
// to date. Rows dated after date or before core.MinDate are ignored. With no
// activity before date the opening balance is zero.
func Compute(date core.Date, monthly core.Money, expenses []core.Expense, income []core.DailyIncome) Summary {
	spent := make(map[string]int64)
	earned := make(map[string]int64)
	start := date
	for _, e := range expenses {
		if e.Date.After(date) || e.Date.Before(core.MinDate) {
			continue
		}
		spent[e.Date.String()] += e.Amount.Cents
		if e.Date.Before(start) {
			start = e.Date
		}
	}
	for _, in := range income {
		if in.Date.After(date) || in.Date.Before(core.MinDate) {
			continue
		}
		earned[in.Date.String()] += in.Amount.Cents
		if in.Date.Before(start) {
			start = in.Date
		}
	}

	var closing int64
	var s Summary
	for day := start; !day.After(date); day = day.AddDays(1) {
		key := day.String()
		s = Summary{
			Date:             day,
			MonthlyAllowance: monthly,
			OpeningBalance:   core.Money{Cents: closing},
			DailyAllowance:   DailyAllowance(monthly, day),
			DailyIncome:      core.Money{Cents: earned[key]},
			TodayExpenses:    core.Money{Cents: spent[key]},
		}
		s.TotalAvailable = core.Money{Cents: s.OpeningBalance.Cents + s.DailyAllowance.Cents + s.DailyIncome.Cents}
		rest := s.TotalAvailable.Cents - s.TodayExpenses.Cents
		if rest < 0 {
			s.Overspent = core.Money{Cents: -rest}
			rest = 0
		}
		s.ClosingBalance = core.Money{Cents: rest}
		s.PercentUsed = core.Percent(s.TodayExpenses, s.TotalAvailable)
		closing = rest
	}
	return s
}
