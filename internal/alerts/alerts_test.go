package alerts

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
	"pisoheroes/internal/notify"
	"pisoheroes/internal/remote"
	"pisoheroes/internal/repository"
	"pisoheroes/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func foodAlert() core.BudgetAlert {
	return core.BudgetAlert{
		UserID:           1,
		Category:         "Food",
		Limit:            core.Money{Cents: 100000},
		ThresholdPercent: 80,
		NotifyDashboard:  true,
		Active:           true,
	}
}

func TestEvaluateThreshold(t *testing.T) {
	tests := []struct {
		name      string
		spend     int64
		triggered bool
		severity  core.Severity
	}{
		{"below threshold", 79900, false, ""},
		{"at threshold", 80000, true, core.SeverityThreshold},
		{"above threshold", 85000, true, core.SeverityThreshold},
		{"critical", 90000, true, core.SeverityCritical},
		{"exceeded", 120000, true, core.SeverityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(foodAlert(), core.Money{Cents: tt.spend})
			assert.Equal(t, tt.triggered, d.Triggered)
			assert.Equal(t, tt.severity, d.Severity)
		})
	}
}

func TestEvaluateInactive(t *testing.T) {
	a := foodAlert()
	a.Active = false
	d := Evaluate(a, core.Money{Cents: 200000})
	assert.False(t, d.Triggered)
	assert.InDelta(t, 200.0, d.Percent, 0.001)
}

func TestMessageFormat(t *testing.T) {
	a := foodAlert()

	d := Evaluate(a, core.Money{Cents: 85000})
	assert.Equal(t, "💰 Budget Alert: Food", Title(a, d))
	assert.Equal(t, "Budget threshold reached (80%)\n\nYou've spent ₱850.00 out of ₱1,000.00 (85.0%).\nRemaining: ₱150.00", Message(a, d))

	d = Evaluate(a, core.Money{Cents: 120000})
	assert.Equal(t, "🚨 Budget Alert: Food", Title(a, d))
	assert.Equal(t, "Budget exceeded!\n\nYou've spent ₱1,200.00 out of ₱1,000.00 (120.0%).\nBudget has been exceeded!", Message(a, d))
}

func TestHealthScore(t *testing.T) {
	assert.Equal(t, "excellent", HealthScore(50).Level)
	assert.Equal(t, 85, HealthScore(80).Score)
	assert.Equal(t, 70, HealthScore(95).Score)
	assert.Equal(t, 50, HealthScore(100).Score)

	h := HealthScore(130)
	assert.Equal(t, "critical", h.Level)
	assert.Equal(t, 0, h.Score)
	assert.Equal(t, "Over budget by 30.0%! Immediate action needed.", h.Message)
}

type fixture struct {
	store   *repository.Store
	logs    *storage.SQLiteRepository
	checker *Checker
	user    core.User
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: repository.New(remote.NewMemoryClient()),
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	logs, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { logs.Close() })
	f.logs = logs

	f.user, err = f.store.Users.Create(ctx, core.User{Username: "ana", Email: "ana@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	clock := func() time.Time { return f.now }
	d := notify.NewDispatcher(logs, notify.WithClock(clock))
	f.checker = NewChecker(f.store.Alerts, f.store.Expenses, f.store.Users, logs, d, time.UTC)
	f.checker.SetClock(clock)
	return f
}

func (f *fixture) addAlert(t *testing.T) core.BudgetAlert {
	t.Helper()
	a := foodAlert()
	a.UserID = f.user.ID
	saved, err := f.store.Alerts.Create(context.Background(), a)
	require.NoError(t, err)
	return saved
}

func (f *fixture) spend(t *testing.T, cents int64, d core.Date) []Outcome {
	t.Helper()
	ctx := context.Background()
	e, err := f.store.Expenses.Create(ctx, core.Expense{UserID: f.user.ID, Amount: core.Money{Cents: cents}, Category: "Food", Date: d})
	require.NoError(t, err)
	out, err := f.checker.CheckExpense(ctx, e)
	require.NoError(t, err)
	return out
}

func (f *fixture) dashboardRows(t *testing.T) []core.NotificationLog {
	t.Helper()
	rows, err := f.logs.Recent(context.Background(), f.user.ID, 50)
	require.NoError(t, err)
	return rows
}

func TestCheckExpenseBelowThreshold(t *testing.T) {
	f := newFixture(t)
	f.addAlert(t)

	out := f.spend(t, 79900, core.NewDate(2025, 3, 10))
	assert.Empty(t, out)
	assert.Empty(t, f.dashboardRows(t))
}

func TestCheckExpenseOncePerDay(t *testing.T) {
	f := newFixture(t)
	f.addAlert(t)
	day := core.NewDate(2025, 3, 10)

	out := f.spend(t, 85000, day)
	require.Len(t, out, 1)
	assert.False(t, out[0].Suppressed)
	require.NotNil(t, out[0].Result)
	assert.True(t, out[0].Result.Dashboard.Delivered)

	out = f.spend(t, 10000, day)
	require.Len(t, out, 1)
	assert.True(t, out[0].Suppressed)
	assert.Equal(t, core.SeverityCritical, out[0].Decision.Severity)

	rows := f.dashboardRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "Food", rows[0].Subject)
	assert.Equal(t, core.CategoryBudgetAlert, rows[0].Category)

	f.now = f.now.Add(24 * time.Hour)
	out = f.spend(t, 1000, day.AddDays(1))
	require.Len(t, out, 1)
	assert.False(t, out[0].Suppressed)
	assert.Len(t, f.dashboardRows(t), 2)
}

func TestCheckExpenseOnlyCountsCurrentMonth(t *testing.T) {
	f := newFixture(t)
	f.addAlert(t)

	assert.Empty(t, f.spend(t, 70000, core.NewDate(2025, 2, 27)))
	assert.Empty(t, f.spend(t, 20000, core.NewDate(2025, 3, 10)))
	assert.Empty(t, f.dashboardRows(t))
}

func TestCheckExpenseNoChannels(t *testing.T) {
	f := newFixture(t)
	a := foodAlert()
	a.UserID = f.user.ID
	a.NotifyDashboard = false
	_, err := f.store.Alerts.Create(context.Background(), a)
	require.NoError(t, err)

	out := f.spend(t, 95000, core.NewDate(2025, 3, 10))
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Result)
	assert.Empty(t, f.dashboardRows(t))
}

func TestCheckExpenseAuditsTriggersAndBreaches(t *testing.T) {
	f := newFixture(t)
	logger := audit.NewLogger(f.logs)
	logger.SetClock(func() time.Time { return f.now })
	f.checker.SetAuditor(logger)
	alert := f.addAlert(t)
	day := core.NewDate(2025, 3, 10)
	ctx := context.Background()

	f.spend(t, 85000, day)
	f.spend(t, 1000, day) // suppressed, not audited

	counts, err := f.logs.CountAuditByAction(ctx, core.AuditFilter{UserID: f.user.ID})
	require.NoError(t, err)
	assert.Equal(t, map[core.AuditAction]int64{core.AuditAlertTriggered: 1}, counts)

	f.now = f.now.Add(24 * time.Hour)
	f.spend(t, 20000, day.AddDays(1))

	breaches, err := f.logs.ListAudit(ctx, core.AuditFilter{UserID: f.user.ID, Action: core.AuditBudgetBreach})
	require.NoError(t, err)
	require.Len(t, breaches, 1)
	assert.Equal(t, core.ResourceAlert, breaches[0].Resource)
	assert.Equal(t, strconv.FormatInt(alert.ID, 10), breaches[0].ResourceID)
	assert.Equal(t, "Food", breaches[0].Metadata["category"])
	assert.Equal(t, string(core.SeverityExceeded), breaches[0].Metadata["severity"])
}

func TestBudgetVsActual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAlert(t)
	_, err := f.store.Alerts.Create(ctx, core.BudgetAlert{UserID: f.user.ID, Category: "Transport", Limit: core.Money{Cents: 10000}, ThresholdPercent: 50, Active: true})
	require.NoError(t, err)
	_, err = f.store.Alerts.Create(ctx, core.BudgetAlert{UserID: f.user.ID, Category: "Bills", Limit: core.Money{Cents: 10000}, ThresholdPercent: 50, Active: true})
	require.NoError(t, err)

	for _, e := range []core.Expense{
		{Amount: core.Money{Cents: 50000}, Category: "Food", Date: core.NewDate(2025, 3, 2)},
		{Amount: core.Money{Cents: 12000}, Category: "Transport", Date: core.NewDate(2025, 3, 3)},
		{Amount: core.Money{Cents: 9700}, Category: "Bills", Date: core.NewDate(2025, 3, 4)},
	} {
		e.UserID = f.user.ID
		_, err := f.store.Expenses.Create(ctx, e)
		require.NoError(t, err)
	}

	lines, err := BudgetVsActual(ctx, f.store.Alerts, f.store.Expenses, f.user.ID, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	by := map[string]BudgetLine{}
	for _, l := range lines {
		by[l.Alert.Category] = l
	}
	assert.Equal(t, StatusUnder, by["Food"].Status)
	assert.Equal(t, int64(50000), by["Food"].Variance.Cents)
	assert.Equal(t, StatusOver, by["Transport"].Status)
	assert.Equal(t, int64(-2000), by["Transport"].Variance.Cents)
	assert.True(t, by["Transport"].Decision.Triggered)
	assert.Equal(t, StatusOnTarget, by["Bills"].Status)
}
