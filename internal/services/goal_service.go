package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
	"pisoheroes/internal/wallet"
)

type GoalStore interface {
	Create(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
	Save(ctx context.Context, g core.SavingsGoal) error
	Delete(ctx context.Context, userID, id int64) error
	Get(ctx context.Context, userID, id int64) (core.SavingsGoal, error)
	List(ctx context.Context, userID int64) ([]core.SavingsGoal, error)
	AddTransaction(ctx context.Context, tx core.SavingsTransaction) (core.SavingsTransaction, error)
	Transactions(ctx context.Context, goalID int64) ([]core.SavingsTransaction, error)
}

// SavingsSpender records the wallet side of a contribution. It is the
// expense service, so budget alerts on the Savings category apply.
type SavingsSpender interface {
	CreateExpense(ctx context.Context, e core.Expense) (ExpenseResult, error)
}

// IncomeAdder records money returned to the wallet by a reset.
type IncomeAdder interface {
	AddIncome(ctx context.Context, in core.DailyIncome) (core.DailyIncome, error)
}

// BalanceReader computes the wallet for a day.
type BalanceReader interface {
	Balance(ctx context.Context, userID int64, date core.Date) (wallet.Summary, error)
}

// Contribution is a request to move money into a goal.
type Contribution struct {
	UserID     int64
	GoalID     int64
	Amount     core.Money
	Notes      string
	FromWallet bool
	Date       core.Date
}

type ContributionResult struct {
	Goal       core.SavingsGoal
	Completed  bool // this contribution completed the goal
	Milestones []int
	Wallet     *wallet.Summary // wallet before the transfer, when drawn from it
	Transfer   *ExpenseResult  // the Savings expense and the alerts it raised
}

// GoalService manages savings goals and the money moving in and out of them.
type GoalService struct {
	goals    GoalStore
	expenses SavingsSpender
	income   IncomeAdder
	wallet   BalanceReader
	alerter  *GoalAlerter
	audit    audit.Recorder
	now      func() time.Time
	loc      *time.Location
}

func NewGoalService(goals GoalStore, expenses SavingsSpender, income IncomeAdder, w BalanceReader, alerter *GoalAlerter, loc *time.Location) *GoalService {
	if loc == nil {
		loc = time.Local
	}
	return &GoalService{
		goals:    goals,
		expenses: expenses,
		income:   income,
		wallet:   w,
		alerter:  alerter,
		audit:    audit.Discard,
		now:      time.Now,
		loc:      loc,
	}
}

func (s *GoalService) SetAuditor(r audit.Recorder) {
	s.audit = audit.Or(r)
}

func (s *GoalService) today() core.Date {
	return core.Today(s.now(), s.loc)
}

func (s *GoalService) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.Name = strings.TrimSpace(g.Name)
	g.Status = core.GoalActive
	g.CompletedAt = nil
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	g.Retarget(g.Target, s.now())

	saved, err := s.goals.Create(ctx, g)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	slog.InfoContext(ctx, "Savings goal created",
		"user_id", saved.UserID,
		"goal_id", saved.ID,
		"amount_cents", saved.Target.Cents)
	s.audit.Record(ctx, audit.Entry(saved.UserID, core.AuditCreate, core.ResourceGoal, saved.ID, map[string]any{
		"name":         saved.Name,
		"target_cents": saved.Target.Cents,
	}))
	return saved, nil
}

// GoalEdit holds the editable fields of a goal.
type GoalEdit struct {
	Name        string
	Description string
	Target      core.Money
	TargetDate  core.Date
}

// UpdateGoal applies edit and re-derives completion from the new target.
func (s *GoalService) UpdateGoal(ctx context.Context, userID, goalID int64, edit GoalEdit) (core.SavingsGoal, error) {
	g, err := s.goals.Get(ctx, userID, goalID)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	g.Name = strings.TrimSpace(edit.Name)
	g.Description = edit.Description
	g.TargetDate = edit.TargetDate
	g.Retarget(edit.Target, s.now())
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	if err := s.goals.Save(ctx, g); err != nil {
		return core.SavingsGoal{}, err
	}
	slog.InfoContext(ctx, "Savings goal updated", "user_id", userID, "goal_id", goalID, "status", g.Status)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditUpdate, core.ResourceGoal, goalID, map[string]any{
		"target_cents": g.Target.Cents,
		"status":       g.Status,
	}))
	return g, nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	if err := s.goals.Delete(ctx, userID, goalID); err != nil {
		return err
	}
	if s.alerter != nil {
		if err := s.alerter.Forget(ctx, goalID); err != nil {
			slog.WarnContext(ctx, "Failed to clear goal alerts", "goal_id", goalID, "error", err)
		}
	}
	slog.InfoContext(ctx, "Savings goal deleted", "user_id", userID, "goal_id", goalID)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditDelete, core.ResourceGoal, goalID, nil))
	return nil
}

func (s *GoalService) GetGoal(ctx context.Context, userID, goalID int64) (core.SavingsGoal, error) {
	return s.goals.Get(ctx, userID, goalID)
}

func (s *GoalService) ListGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	return s.goals.List(ctx, userID)
}

func (s *GoalService) Transactions(ctx context.Context, userID, goalID int64) ([]core.SavingsTransaction, error) {
	if _, err := s.goals.Get(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return s.goals.Transactions(ctx, goalID)
}

// Contribute adds money to a goal. When drawn from the wallet the day's
// closing balance must cover the amount and a Savings expense is recorded
// after the goal is saved; if that write fails the goal is restored.
// Contributions are not capped at the target.
func (s *GoalService) Contribute(ctx context.Context, c Contribution) (ContributionResult, error) {
	if err := c.Amount.Validate(); err != nil {
		return ContributionResult{}, err
	}
	if len(c.Notes) > 500 {
		return ContributionResult{}, core.ErrNotesTooLong
	}
	if c.Date.IsZero() {
		c.Date = s.today()
	}

	g, err := s.goals.Get(ctx, c.UserID, c.GoalID)
	if err != nil {
		return ContributionResult{}, err
	}
	res := ContributionResult{}

	if c.FromWallet {
		sum, err := s.wallet.Balance(ctx, c.UserID, c.Date)
		if err != nil {
			return ContributionResult{}, fmt.Errorf("wallet balance: %w", err)
		}
		res.Wallet = &sum
		if sum.ClosingBalance.Cents < c.Amount.Cents {
			return res, fmt.Errorf("need %s, have %s: %w", c.Amount, sum.ClosingBalance, core.ErrInsufficientFunds)
		}
	}

	orig := g
	res.Completed = g.Contribute(c.Amount, s.now())
	if err := s.goals.Save(ctx, g); err != nil {
		return res, fmt.Errorf("save goal: %w", err)
	}

	if c.FromWallet {
		notes := fmt.Sprintf("Transfer to '%s' savings goal", g.Name)
		if c.Notes != "" {
			notes += " - " + c.Notes
		}
		if len(notes) > 500 {
			notes = strings.ToValidUTF8(notes[:500], "")
		}
		transfer, err := s.expenses.CreateExpense(ctx, core.Expense{
			UserID:   c.UserID,
			Amount:   c.Amount,
			Category: core.SavingsCategory,
			Date:     c.Date,
			Notes:    notes,
		})
		if err != nil {
			s.restore(ctx, orig)
			return ContributionResult{Wallet: res.Wallet}, fmt.Errorf("record savings transfer: %w", err)
		}
		res.Transfer = &transfer
	}
	res.Goal = g

	if _, err := s.goals.AddTransaction(ctx, core.SavingsTransaction{
		GoalID: g.ID,
		Amount: c.Amount,
		Type:   "add",
		Notes:  c.Notes,
	}); err != nil {
		slog.WarnContext(ctx, "Failed to record savings transaction", "goal_id", g.ID, "error", err)
	}

	slog.InfoContext(ctx, "Savings contributed",
		"user_id", c.UserID,
		"goal_id", g.ID,
		"amount_cents", c.Amount.Cents,
		"from_wallet", c.FromWallet,
		"progress", g.Progress(),
		"status", g.Status)
	s.audit.Record(ctx, audit.Entry(c.UserID, core.AuditUpdate, core.ResourceGoal, g.ID, map[string]any{
		"contribution_cents": c.Amount.Cents,
		"from_wallet":        c.FromWallet,
		"current_cents":      g.Current.Cents,
	}))

	if s.alerter != nil {
		res.Milestones, err = s.alerter.CheckMilestones(ctx, g)
		if err != nil {
			slog.WarnContext(ctx, "Goal milestone check failed", "goal_id", g.ID, "error", err)
		}
		if _, err := s.alerter.CheckDeadline(ctx, g, s.today()); err != nil {
			slog.WarnContext(ctx, "Goal deadline check failed", "goal_id", g.ID, "error", err)
		}
	}
	return res, nil
}

// restore puts back a goal whose paired wallet write failed.
func (s *GoalService) restore(ctx context.Context, orig core.SavingsGoal) {
	if err := s.goals.Save(ctx, orig); err != nil {
		slog.ErrorContext(ctx, "Failed to restore savings goal after wallet write failed",
			"user_id", orig.UserID,
			"goal_id", orig.ID,
			"current_cents", orig.Current.Cents,
			"error", err)
		return
	}
	slog.WarnContext(ctx, "Savings goal restored after wallet write failed", "goal_id", orig.ID)
}

// ResetGoal empties a goal, returns the saved amount to the wallet as
// savings_withdrawal income and reactivates the goal. The goal is saved
// first and restored if the income cannot be written.
func (s *GoalService) ResetGoal(ctx context.Context, userID, goalID int64) (core.Money, error) {
	g, err := s.goals.Get(ctx, userID, goalID)
	if err != nil {
		return core.Money{}, err
	}
	if g.Current.Cents <= 0 && g.Status == core.GoalActive {
		return core.Money{}, core.ErrNothingToReset
	}

	orig := g
	saved := g.Reset()
	if err := s.goals.Save(ctx, g); err != nil {
		return core.Money{}, fmt.Errorf("save goal: %w", err)
	}
	if saved.Cents > 0 {
		if _, err := s.income.AddIncome(ctx, core.DailyIncome{
			UserID: userID,
			Amount: saved,
			Source: core.SourceSavingsWithdrawal,
			Date:   s.today(),
			Notes:  "Returned from savings goal: " + g.Name,
		}); err != nil {
			s.restore(ctx, orig)
			return core.Money{}, fmt.Errorf("return savings to wallet: %w", err)
		}
	}

	if _, err := s.goals.AddTransaction(ctx, core.SavingsTransaction{
		GoalID: g.ID,
		Amount: saved,
		Type:   "reset",
		Notes:  "Goal reset",
	}); err != nil {
		slog.WarnContext(ctx, "Failed to record reset transaction", "goal_id", g.ID, "error", err)
	}
	if s.alerter != nil {
		if err := s.alerter.Forget(ctx, g.ID); err != nil {
			slog.WarnContext(ctx, "Failed to clear goal alerts", "goal_id", g.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Savings goal reset", "user_id", userID, "goal_id", goalID, "amount_cents", saved.Cents)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditUpdate, core.ResourceGoal, goalID, map[string]any{
		"reset":          true,
		"returned_cents": saved.Cents,
	}))
	return saved, nil
}
