package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pisoheroes/internal/core"
)

// MaxRangeDays caps every requested range.
const MaxRangeDays = 366

// TrendMonths is how many calendar months the trend chart shows.
const TrendMonths = 6

var (
	ErrInvalidRange = errors.New("end date is before start date")
	ErrRangeTooLong = fmt.Errorf("date range longer than %d days", MaxRangeDays)
)

type ExpenseRanger interface {
	Between(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error)
}

type LimitReader interface {
	Active(ctx context.Context, userID int64) ([]core.BudgetAlert, error)
}

// Range is an inclusive span of days.
type Range struct {
	From core.Date
	To   core.Date
}

func (r Range) Validate() error {
	if err := r.From.Validate(); err != nil {
		return err
	}
	if err := r.To.Validate(); err != nil {
		return err
	}
	if r.To.Before(r.From) {
		return ErrInvalidRange
	}
	if r.To.DaysSince(r.From)+1 > MaxRangeDays {
		return ErrRangeTooLong
	}
	return nil
}

// Report bundles every series for one range.
type Report struct {
	Range      Range
	Summary    Summary
	Expenses   []core.Expense
	Daily      []DailyPoint
	Categories []CategoryPoint
	Weekly     []WeekPoint
	Monthly    []MonthPoint
	Hourly     []HourPoint
}

type Service struct {
	expenses ExpenseRanger
	alerts   LimitReader
	now      func() time.Time
	loc      *time.Location
}

func NewService(expenses ExpenseRanger, alerts LimitReader, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{expenses: expenses, alerts: alerts, now: time.Now, loc: loc}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) today() core.Date {
	return core.Today(s.now(), s.loc)
}

// DefaultRange is the current month up to today.
func (s *Service) DefaultRange() Range {
	today := s.today()
	return Range{From: today.MonthStart(), To: today}
}

// ParseRange reads YYYY-MM-DD bounds. An empty bound takes its value from
// DefaultRange.
func (s *Service) ParseRange(from, to string) (Range, error) {
	r := s.DefaultRange()
	if from != "" {
		d, err := core.ParseDate(from)
		if err != nil {
			return Range{}, err
		}
		r.From = d
	}
	if to != "" {
		d, err := core.ParseDate(to)
		if err != nil {
			return Range{}, err
		}
		r.To = d
	}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (s *Service) load(ctx context.Context, userID int64, r Range) ([]core.Expense, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.expenses.Between(ctx, userID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	return rows, nil
}

func (s *Service) DailySpending(ctx context.Context, userID int64, r Range) ([]DailyPoint, error) {
	rows, err := s.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return Daily(rows, r.From, r.To), nil
}

func (s *Service) CategoryBreakdown(ctx context.Context, userID int64, r Range) ([]CategoryPoint, error) {
	rows, err := s.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return Categories(rows), nil
}

func (s *Service) WeeklyComparison(ctx context.Context, userID int64, r Range) ([]WeekPoint, error) {
	rows, err := s.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return Weekly(rows), nil
}

// MonthlyTrends covers the last TrendMonths calendar months up to today,
// whatever range the page shows.
func (s *Service) MonthlyTrends(ctx context.Context, userID int64) ([]MonthPoint, error) {
	today := s.today()
	start := core.NewDate(today.Year(), today.Month()-(TrendMonths-1), 1)
	rows, err := s.expenses.Between(ctx, userID, start, today)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	return Monthly(rows, today, TrendMonths), nil
}

func (s *Service) HourlyPatterns(ctx context.Context, userID int64, r Range) ([]HourPoint, error) {
	rows, err := s.load(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return Hourly(rows, s.loc), nil
}

// Summary computes the headline block, comparing spend with the summed
// limits of the user's active alerts.
func (s *Service) Summary(ctx context.Context, userID int64, r Range) (Summary, error) {
	rows, err := s.load(ctx, userID, r)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(ctx, userID, rows, r)
}

func (s *Service) summarize(ctx context.Context, userID int64, rows []core.Expense, r Range) (Summary, error) {
	alerts, err := s.alerts.Active(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("load alerts: %w", err)
	}
	var limits core.Money
	for _, a := range alerts {
		limits = limits.Add(a.Limit)
	}
	return Summarize(rows, r.From, r.To, limits), nil
}

// Report loads the range once and derives every series from it. Monthly
// holds only the months inside the range.
func (s *Service) Report(ctx context.Context, userID int64, r Range) (Report, error) {
	rows, err := s.load(ctx, userID, r)
	if err != nil {
		return Report{}, err
	}
	sum, err := s.summarize(ctx, userID, rows, r)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Range:      r,
		Summary:    sum,
		Expenses:   rows,
		Daily:      Daily(rows, r.From, r.To),
		Categories: Categories(rows),
		Weekly:     Weekly(rows),
		Monthly:    ByMonth(rows),
		Hourly:     Hourly(rows, s.loc),
	}, nil
}
