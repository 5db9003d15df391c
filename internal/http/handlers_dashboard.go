package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"pisoheroes/internal/alerts"
	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
	"pisoheroes/internal/wallet"
)

type dashboardView struct {
	Wallet        wallet.Summary
	Budgets       []alerts.BudgetLine
	Goals         []core.SavingsGoal
	Recent        []core.Expense
	Month         core.MonthOverview
	Notifications []core.NotificationLog
	Categories    []string
}

// handleDashboard loads every section concurrently; one failing section
// fails the page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	today := s.today()

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	var v dashboardView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		v.Wallet, err = s.walletSummary(gctx, user.ID, today)
		return err
	})
	g.Go(func() (err error) {
		v.Budgets, err = alerts.BudgetVsActual(gctx, s.app.Store.Alerts, s.app.Store.Expenses, user.ID, today.MonthStart(), today)
		return err
	})
	g.Go(func() error {
		goals, err := s.app.Goals.ListGoals(gctx, user.ID)
		for _, goal := range goals {
			if goal.Status == core.GoalActive {
				v.Goals = append(v.Goals, goal)
			}
		}
		return err
	})
	g.Go(func() (err error) {
		v.Recent, err = s.app.Expenses.RecentExpenses(gctx, user.ID, 5)
		return err
	})
	g.Go(func() (err error) {
		v.Month, err = s.app.Expenses.MonthOverview(gctx, user.ID, today.Year(), today.Month())
		return err
	})
	g.Go(func() (err error) {
		v.Notifications, err = s.app.Notifications.Recent(gctx, user.ID, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		s.events.LogError(r.Context(), "Dashboard load failed", err, log.OpRender, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load dashboard", http.StatusInternalServerError)
		return
	}
	v.Categories = core.ExpenseCategories

	s.render(w, r, http.StatusOK, "dashboard", "Dashboard", v, nil)
}

// handleWallet returns the wallet summary for ?date= (default today) as JSON.
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	date, err := ParseDateValue(r.URL.Query().Get("date"), s.today())
	if err != nil {
		JSONError(http.StatusUnprocessableEntity, "date must be YYYY-MM-DD").Write(w, r)
		return
	}
	sum, err := s.walletSummary(r.Context(), user.ID, date)
	if err != nil {
		s.events.LogError(r.Context(), "Wallet calculation failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		JSONError(http.StatusInternalServerError, UserMessage(err)).Write(w, r)
		return
	}
	NewResponse().Field("wallet", sum.Payload()).Write(w, r)
}

func walletKey(userID int64, date core.Date) string {
	return strconv.FormatInt(userID, 10) + ":" + date.String()
}

func (s *Server) walletSummary(ctx context.Context, userID int64, date core.Date) (wallet.Summary, error) {
	key := walletKey(userID, date)
	if sum, ok := s.wallets.Get(key); ok {
		slog.DebugContext(ctx, "Wallet cache hit", "user_id", userID, "date", date.String())
		return sum, nil
	}
	sum, err := s.app.Wallet.Balance(ctx, userID, date)
	if err != nil {
		return wallet.Summary{}, err
	}
	s.wallets.Set(key, sum)
	return sum, nil
}

// invalidateWallet drops every cached summary of userID. Any write can move
// balances on all later days.
func (s *Server) invalidateWallet(ctx context.Context, userID int64) {
	if n := s.wallets.DeletePrefix(strconv.FormatInt(userID, 10) + ":"); n > 0 {
		slog.DebugContext(ctx, "Wallet cache invalidated", "user_id", userID, "entries", n)
	}
}
