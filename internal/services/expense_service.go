package services

import (
	"context"
	"fmt"
	"log/slog"

	"pisoheroes/internal/alerts"
	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
)

type ExpenseStore interface {
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Update(ctx context.Context, e core.Expense) error
	Delete(ctx context.Context, userID, id int64) error
	Get(ctx context.Context, userID, id int64) (core.Expense, error)
	Recent(ctx context.Context, userID int64, limit int) ([]core.Expense, error)
	Between(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error)
}

// AlertChecker evaluates budget alerts after an expense write.
type AlertChecker interface {
	CheckExpense(ctx context.Context, e core.Expense) ([]alerts.Outcome, error)
}

// ExpenseResult carries the saved expense and the alerts it triggered.
// Warning is set when the expense was saved but alert evaluation failed.
type ExpenseResult struct {
	Expense core.Expense
	Alerts  []alerts.Outcome
	Warning string
}

// Notified returns the alerts that produced a new notification.
func (r ExpenseResult) Notified() []alerts.Outcome {
	var out []alerts.Outcome
	for _, o := range r.Alerts {
		if !o.Suppressed && o.Result != nil {
			out = append(out, o)
		}
	}
	return out
}

// ExpenseService orchestrates expense writes and the budget alert check that
// follows them.
type ExpenseService struct {
	store   ExpenseStore
	checker AlertChecker
	audit   audit.Recorder
}

func NewExpenseService(store ExpenseStore, checker AlertChecker) *ExpenseService {
	return &ExpenseService{
		store:   store,
		checker: checker,
		audit:   audit.Discard,
	}
}

func (s *ExpenseService) SetAuditor(r audit.Recorder) { s.audit = audit.Or(r) }

func expenseMetadata(e core.Expense) map[string]any {
	return map[string]any{
		"amount_cents": e.Amount.Cents,
		"category":     e.Category,
		"date":         e.Date.String(),
	}
}

// CreateExpense validates and saves an expense, then checks budget alerts.
// An alert failure never fails the write.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (ExpenseResult, error) {
	if err := e.Validate(); err != nil {
		return ExpenseResult{}, err
	}

	saved, err := s.store.Create(ctx, e)
	if err != nil {
		return ExpenseResult{}, fmt.Errorf("save expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense created",
		"user_id", saved.UserID,
		"id", saved.ID,
		"amount_cents", saved.Amount.Cents,
		"category", saved.Category,
		"date", saved.Date.String())
	s.audit.Record(ctx, audit.Entry(saved.UserID, core.AuditCreate, core.ResourceExpense, saved.ID, expenseMetadata(saved)))

	return s.afterWrite(ctx, saved), nil
}

// UpdateExpense edits an expense owned by e.UserID and re-checks alerts.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (ExpenseResult, error) {
	if err := e.Validate(); err != nil {
		return ExpenseResult{}, err
	}
	if err := s.store.Update(ctx, e); err != nil {
		return ExpenseResult{}, err
	}
	saved, err := s.store.Get(ctx, e.UserID, e.ID)
	if err != nil {
		return ExpenseResult{}, fmt.Errorf("reload expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense updated", "user_id", e.UserID, "id", e.ID)
	s.audit.Record(ctx, audit.Entry(e.UserID, core.AuditUpdate, core.ResourceExpense, e.ID, expenseMetadata(saved)))

	return s.afterWrite(ctx, saved), nil
}

func (s *ExpenseService) afterWrite(ctx context.Context, e core.Expense) ExpenseResult {
	res := ExpenseResult{Expense: e}
	if s.checker == nil {
		return res
	}
	outcomes, err := s.checker.CheckExpense(ctx, e)
	res.Alerts = outcomes
	if err != nil {
		slog.WarnContext(ctx, "Budget alert check failed",
			"user_id", e.UserID,
			"expense_id", e.ID,
			"error", err)
		res.Warning = "Expense saved, but budget alerts could not be checked."
		return res
	}
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		if err := o.Result.Err(); err != nil {
			res.Warning = "Expense saved, but some alert notifications could not be delivered."
		}
	}
	return res
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id int64) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense deleted", "user_id", userID, "id", id)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditDelete, core.ResourceExpense, id, nil))
	return nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	return s.store.Get(ctx, userID, id)
}

// RecentExpenses lists the newest expenses first.
func (s *ExpenseService) RecentExpenses(ctx context.Context, userID int64, limit int) ([]core.Expense, error) {
	return s.store.Recent(ctx, userID, limit)
}

// MonthOverview totals a calendar month by category.
func (s *ExpenseService) MonthOverview(ctx context.Context, userID int64, year, month int) (core.MonthOverview, error) {
	start := core.NewDate(year, month, 1)
	rows, err := s.store.Between(ctx, userID, start, start.MonthEnd())
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("month overview: %w", err)
	}
	total, by := core.SumExpenses(rows)
	return core.MonthOverview{Year: year, Month: month, Total: total, ByCategory: by}, nil
}
