package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pisoheroes/internal/alerts"
	"pisoheroes/internal/core"
	"pisoheroes/internal/notify"
	"pisoheroes/internal/remote"
	"pisoheroes/internal/repository"
	"pisoheroes/internal/storage"
	"pisoheroes/internal/wallet"

	"github.com/stretchr/testify/require"
)

type env struct {
	store      *repository.Store
	logs       *storage.SQLiteRepository
	dispatcher *notify.Dispatcher
	user       core.User
	now        time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{
		store: repository.New(remote.NewMemoryClient()),
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	logs, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { logs.Close() })
	e.logs = logs
	e.dispatcher = notify.NewDispatcher(logs, notify.WithClock(e.clock))

	e.user, err = e.store.Users.Create(ctx, core.User{Username: "juan", Email: "juan@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	return e
}

func (e *env) clock() time.Time { return e.now }

func (e *env) today() core.Date { return core.Today(e.now, time.UTC) }

func (e *env) checker() *alerts.Checker {
	c := alerts.NewChecker(e.store.Alerts, e.store.Expenses, e.store.Users, e.logs, e.dispatcher, time.UTC)
	c.SetClock(e.clock)
	return c
}

func (e *env) alerter() *GoalAlerter {
	a := NewGoalAlerter(e.logs, e.store.Users, e.dispatcher)
	a.now = e.clock
	return a
}

func (e *env) goalService() *GoalService {
	return e.goalServiceWith(e.store.Goals, NewExpenseService(e.store.Expenses, e.checker()), NewIncomeService(e.store.Income))
}

func (e *env) goalServiceWith(goals GoalStore, spender SavingsSpender, income IncomeAdder) *GoalService {
	calc := wallet.NewCalculator(e.store.Expenses, e.store.Income, e.store.Settings)
	s := NewGoalService(goals, spender, income, calc, e.alerter(), time.UTC)
	s.now = e.clock
	return s
}

func (e *env) dashboard(t *testing.T) []core.NotificationLog {
	t.Helper()
	rows, err := e.logs.Recent(context.Background(), e.user.ID, 50)
	require.NoError(t, err)
	return rows
}

func pesos(p int64) core.Money { return core.Money{Cents: p * 100} }
