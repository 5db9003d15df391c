package core

import (
	"errors"
	"strings"
	"time"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

type (
	GoalStatus string

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	Expense struct {
		ID        int64
		UserID    int64
		Amount    Money
		Category  string
		Date      Date
		Notes     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// BudgetAlert watches one spending category. Category is free text and
	// is matched case-insensitively against expense categories.
	BudgetAlert struct {
		ID               int64
		UserID           int64
		Category         string
		Limit            Money
		ThresholdPercent int
		NotifyDashboard  bool
		NotifyEmail      bool
		NotifyPush       bool
		Active           bool
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}

	DailyIncome struct {
		ID        int64
		UserID    int64
		Amount    Money
		Source    IncomeSource
		Date      Date
		Notes     string
		CreatedAt time.Time
	}

	SavingsGoal struct {
		ID          int64
		UserID      int64
		Name        string
		Target      Money
		Current     Money
		Description string
		TargetDate  Date // zero when the goal has no deadline
		Status      GoalStatus
		CreatedAt   time.Time
		CompletedAt *time.Time
	}

	SavingsTransaction struct {
		ID        int64
		GoalID    int64
		Amount    Money
		Type      string // "add" or "reset"
		Notes     string
		CreatedAt time.Time
	}

	UserSettings struct {
		UserID           int64
		MonthlyAllowance Money
		UpdatedAt        time.Time
	}
)

const (
	MinThresholdPercent = 10
	MaxThresholdPercent = 100
	maxNotesLength      = 500
	maxGoalNameLength   = 200
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrDateOutOfRange    = errors.New("date must be between 1970 and one year from today")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAmountTooLarge    = errors.New("amount exceeds maximum")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrEmptyCategory     = errors.New("empty category")
	ErrUnknownSource     = errors.New("unknown income source")
	ErrInvalidThreshold  = errors.New("threshold must be between 10 and 100 percent")
	ErrDuplicateAlert    = errors.New("an active alert already exists for this category")
	ErrEmptyGoalName     = errors.New("empty goal name")
	ErrNotesTooLong      = errors.New("notes too long (max 500 characters)")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrNothingToReset    = errors.New("goal has no savings to reset")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

func validateNotes(notes string) error {
	if len(notes) > maxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !IsExpenseCategory(e.Category) {
		return ErrUnknownCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return validateNotes(e.Notes)
}

func (a BudgetAlert) Validate() error {
	if strings.TrimSpace(a.Category) == "" {
		return ErrEmptyCategory
	}
	if err := a.Limit.Validate(); err != nil {
		return err
	}
	if a.ThresholdPercent < MinThresholdPercent || a.ThresholdPercent > MaxThresholdPercent {
		return ErrInvalidThreshold
	}
	return nil
}

func (i DailyIncome) Validate() error {
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !i.Source.Valid() {
		return ErrUnknownSource
	}
	if err := i.Date.Validate(); err != nil {
		return err
	}
	return validateNotes(i.Notes)
}

func (g SavingsGoal) Validate() error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return ErrEmptyGoalName
	}
	if len(name) > maxGoalNameLength {
		return errors.New("goal name too long (max 200 characters)")
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.Current.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Progress returns the saved share of the target in percent. It is not
// capped, so over-saved goals report more than 100.
func (g SavingsGoal) Progress() float64 {
	if g.Target.Cents <= 0 {
		return 0
	}
	return float64(g.Current.Cents) * 100 / float64(g.Target.Cents)
}

// Remaining is the amount still missing to reach the target, never negative.
func (g SavingsGoal) Remaining() Money {
	if g.Current.Cents >= g.Target.Cents {
		return Money{}
	}
	return Money{Cents: g.Target.Cents - g.Current.Cents}
}

// Contribute adds amount to the goal. The goal completes the first time the
// saved amount reaches the target; later contributions keep accumulating and
// never reopen it. It reports whether this call completed the goal.
func (g *SavingsGoal) Contribute(amount Money, now time.Time) bool {
	g.Current.Cents += amount.Cents
	return g.settle(now)
}

// Retarget changes the target and re-derives completion.
func (g *SavingsGoal) Retarget(target Money, now time.Time) {
	g.Target = target
	if g.Status == GoalCompleted && g.Current.Cents < g.Target.Cents {
		g.Status = GoalActive
		g.CompletedAt = nil
		return
	}
	g.settle(now)
}

// Reset empties the goal and reactivates it, returning what was saved.
func (g *SavingsGoal) Reset() Money {
	saved := g.Current
	g.Current = Money{}
	g.Status = GoalActive
	g.CompletedAt = nil
	return saved
}

func (g *SavingsGoal) settle(now time.Time) bool {
	if g.Status == GoalCompleted || g.Current.Cents < g.Target.Cents {
		return false
	}
	g.Status = GoalCompleted
	if g.CompletedAt == nil {
		t := now
		g.CompletedAt = &t
	}
	return true
}

// DaysLeft returns days from today until the target date. ok is false when
// the goal has no deadline.
func (g SavingsGoal) DaysLeft(today Date) (days int, ok bool) {
	if g.TargetDate.IsZero() {
		return 0, false
	}
	return g.TargetDate.DaysSince(today), true
}
