package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateValidateRange(t *testing.T) {
	ancient, err := ParseDate("0001-01-02")
	require.NoError(t, err, "parsing only checks the layout")
	assert.ErrorIs(t, ancient.Validate(), ErrDateOutOfRange)
	assert.ErrorIs(t, NewDate(1969, 12, 31).Validate(), ErrDateOutOfRange)
	assert.NoError(t, MinDate.Validate())

	limit := MaxDate(time.Now())
	assert.NoError(t, limit.Validate())
	assert.ErrorIs(t, limit.AddDays(1).Validate(), ErrDateOutOfRange)

	e := Expense{Amount: Money{Cents: 100}, Category: "Food", Date: ancient}
	assert.ErrorIs(t, e.Validate(), ErrDateOutOfRange)
	in := DailyIncome{Amount: Money{Cents: 100}, Source: SourceGift, Date: NewDate(9999, 1, 1)}
	assert.ErrorIs(t, in.Validate(), ErrDateOutOfRange)
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, 2, 28)
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, 29, d.DaysInMonth())
	assert.Equal(t, 31, NewDate(2025, 1, 10).DaysInMonth())
	assert.Equal(t, "2024-02-01", d.MonthStart().String())
	assert.Equal(t, 3, NewDate(2024, 3, 2).DaysSince(d))

	parsed, err := ParseDate("2025-06-15")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(NewDate(2025, 6, 15)))

	_, err = ParseDate("15/06/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestTodayUsesLocation(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)
	// 20:00 UTC is already the next day in Manila.
	now := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-02", Today(now, manila).String())
	assert.Equal(t, "2025-03-01", Today(now, time.UTC).String())
}

func TestExpenseValidate(t *testing.T) {
	valid := Expense{Amount: Money{Cents: 100}, Category: "Food", Date: NewDate(2025, 1, 1)}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		mod  func(e *Expense)
		want error
	}{
		{"zero amount", func(e *Expense) { e.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(e *Expense) { e.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"too large", func(e *Expense) { e.Amount = Money{Cents: MaxAmountCents + 1} }, ErrAmountTooLarge},
		{"unknown category", func(e *Expense) { e.Category = "Gadgets" }, ErrUnknownCategory},
		{"missing date", func(e *Expense) { e.Date = Date{} }, ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mod(&e)
			assert.ErrorIs(t, e.Validate(), tc.want)
		})
	}
}

func TestBudgetAlertValidateThreshold(t *testing.T) {
	a := BudgetAlert{Category: "Food", Limit: Money{Cents: 100000}, ThresholdPercent: 80}
	require.NoError(t, a.Validate())

	for _, th := range []int{0, 9, 101} {
		a.ThresholdPercent = th
		assert.ErrorIs(t, a.Validate(), ErrInvalidThreshold, "threshold %d", th)
	}
	a.ThresholdPercent = 10
	assert.NoError(t, a.Validate())
	a.ThresholdPercent = 100
	assert.NoError(t, a.Validate())
}

func TestSavingsGoalCompletionIsSticky(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	g := SavingsGoal{Name: "Laptop", Target: Money{Cents: 10000}, Status: GoalActive}

	assert.False(t, g.Contribute(Money{Cents: 6000}, now))
	assert.Equal(t, GoalActive, g.Status)

	assert.True(t, g.Contribute(Money{Cents: 4000}, now))
	assert.Equal(t, GoalCompleted, g.Status)
	require.NotNil(t, g.CompletedAt)
	assert.Equal(t, now, *g.CompletedAt)

	later := now.Add(48 * time.Hour)
	assert.False(t, g.Contribute(Money{Cents: 2500}, later))
	assert.Equal(t, GoalCompleted, g.Status)
	assert.Equal(t, int64(12500), g.Current.Cents)
	assert.Equal(t, now, *g.CompletedAt, "completion time is recorded once")
	assert.InDelta(t, 125.0, g.Progress(), 1e-9)
	assert.Zero(t, g.Remaining().Cents)
}

func TestSavingsGoalRetargetAndReset(t *testing.T) {
	now := time.Now()
	g := SavingsGoal{Name: "Trip", Target: Money{Cents: 5000}, Current: Money{Cents: 5000}, Status: GoalActive}
	g.Retarget(Money{Cents: 5000}, now)
	assert.Equal(t, GoalCompleted, g.Status)

	g.Retarget(Money{Cents: 8000}, now)
	assert.Equal(t, GoalActive, g.Status)
	assert.Nil(t, g.CompletedAt)

	saved := g.Reset()
	assert.Equal(t, int64(5000), saved.Cents)
	assert.Zero(t, g.Current.Cents)
	assert.Equal(t, GoalActive, g.Status)
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"food":              "Food",
		"  FOOD  ":          "Food",
		"school supplies":   "School Supplies",
		"weekend transport": "Transport",
		"coffee  runs":      "Coffee Runs",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCategory(in), "input %q", in)
	}
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityThreshold, SeverityFor(80))
	assert.Equal(t, SeverityThreshold, SeverityFor(89.99))
	assert.Equal(t, SeverityCritical, SeverityFor(90))
	assert.Equal(t, SeverityExceeded, SeverityFor(100))
	assert.Equal(t, SeverityExceeded, SeverityFor(250))
	assert.Equal(t, "Budget exceeded!", SeverityExceeded.Title())
}

func TestPreferencesAllowEmail(t *testing.T) {
	p := DefaultPreferences(1)
	assert.True(t, p.AllowsEmail(CategoryBudgetAlert))
	p.EmailBudgetAlerts = false
	assert.False(t, p.AllowsEmail(CategoryBudgetAlert))
	assert.True(t, p.AllowsEmail(CategoryGoalMilestone))
	p.EmailEnabled = false
	assert.False(t, p.AllowsEmail(CategoryGoalMilestone))
	assert.False(t, p.AllowsPush())
}
