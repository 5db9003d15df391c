package alerts

import (
	"context"
	"fmt"

	"pisoheroes/internal/core"
)

type BudgetStatus string

const (
	StatusUnder    BudgetStatus = "under"
	StatusOnTarget BudgetStatus = "on_target"
	StatusOver     BudgetStatus = "over"
)

// onTargetPercent is where a budget stops counting as comfortably under.
const onTargetPercent = 95.0

// BudgetLine compares one active alert's limit with actual spend.
type BudgetLine struct {
	Alert    core.BudgetAlert
	Budget   core.Money
	Actual   core.Money
	Variance core.Money // budget minus actual, negative when over
	Usage    float64
	Status   BudgetStatus
	Decision Decision
	Health   Health
}

// VariancePercent is the variance as a share of the budget.
func (l BudgetLine) VariancePercent() float64 {
	return core.Percent(l.Variance, l.Budget)
}

type ActiveLister interface {
	Active(ctx context.Context, userID int64) ([]core.BudgetAlert, error)
}

type ExpenseRanger interface {
	Between(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error)
}

// BudgetVsActual reports every active alert against spend from from to to,
// inclusive.
func BudgetVsActual(ctx context.Context, alerts ActiveLister, expenses ExpenseRanger, userID int64, from, to core.Date) ([]BudgetLine, error) {
	active, err := alerts.Active(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}
	rows, err := expenses.Between(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	lines := make([]BudgetLine, 0, len(active))
	for _, a := range active {
		var actual core.Money
		for _, e := range rows {
			if core.SameCategory(e.Category, a.Category) {
				actual = actual.Add(e.Amount)
			}
		}
		lines = append(lines, newBudgetLine(a, actual))
	}
	return lines, nil
}

func newBudgetLine(a core.BudgetAlert, actual core.Money) BudgetLine {
	l := BudgetLine{
		Alert:    a,
		Budget:   a.Limit,
		Actual:   actual,
		Variance: a.Limit.Sub(actual),
		Usage:    core.Percent(actual, a.Limit),
		Decision: Evaluate(a, actual),
	}
	switch {
	case l.Usage < onTargetPercent:
		l.Status = StatusUnder
	case actual.Cents > a.Limit.Cents:
		l.Status = StatusOver
	default:
		l.Status = StatusOnTarget
	}
	l.Health = HealthScore(l.Usage)
	return l
}

// Health is a coarse 0-100 score for a category's usage.
type Health struct {
	Score   int
	Level   string
	Color   string
	Message string
}

func HealthScore(usage float64) Health {
	switch {
	case usage <= 70:
		return Health{100, "excellent", "#28a745", "Well within budget! Excellent spending control."}
	case usage <= 85:
		return Health{85, "good", "#34c54a", "Good budget management. Keep it up!"}
	case usage <= 95:
		return Health{70, "warning", "#ffc107", "Approaching budget limit. Monitor spending closely."}
	case usage <= 100:
		return Health{50, "warning", "#fd7e14", "Near budget limit! Be cautious with spending."}
	}
	score := 100 - int(usage)
	if score < 0 {
		score = 0
	}
	return Health{
		Score:   score,
		Level:   "critical",
		Color:   "#dc3545",
		Message: fmt.Sprintf("Over budget by %.1f%%! Immediate action needed.", usage-100),
	}
}
