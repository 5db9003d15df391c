package http

import (
	"fmt"
	"net/http"
	"strings"

	"pisoheroes/internal/core"
	"pisoheroes/internal/export"
	"pisoheroes/internal/log"
	"pisoheroes/internal/services"
)

const expensePageSize = 50

type expensesView struct {
	Expenses   []core.Expense
	Month      core.MonthOverview
	Categories []string
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	s.showExpenses(w, r, http.StatusOK, nil)
}

func (s *Server) showExpenses(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	mp := ParseMonthParams(r.URL.Query(), s.today())

	list, err := s.app.Expenses.RecentExpenses(r.Context(), user.ID, expensePageSize)
	if err != nil {
		s.events.LogError(r.Context(), "List expenses failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load expenses", http.StatusInternalServerError)
		return
	}
	month, err := s.app.Expenses.MonthOverview(r.Context(), user.ID, mp.Year, mp.Month)
	if err != nil {
		s.events.LogError(r.Context(), "Month overview failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load expenses", http.StatusInternalServerError)
		return
	}
	s.render(w, r, status, "expenses", "Expenses", expensesView{
		Expenses:   list,
		Month:      month,
		Categories: core.ExpenseCategories,
	}, flash)
}

// expenseFromForm reads the shared create/edit fields.
func (s *Server) expenseFromForm(r *http.Request, userID int64) (core.Expense, error) {
	amount, err := ParseMoney(r.PostFormValue("amount"))
	if err != nil {
		return core.Expense{}, err
	}
	date, err := ParseDateValue(r.PostFormValue("date"), s.today())
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		UserID:   userID,
		Amount:   amount,
		Category: sanitizeInput(r.PostFormValue("category")),
		Date:     date,
		Notes:    sanitizeInput(r.PostFormValue("notes")),
	}, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	e, err := s.expenseFromForm(r, user.ID)
	if err == nil {
		var res services.ExpenseResult
		res, err = s.app.Expenses.CreateExpense(r.Context(), e)
		if err == nil {
			s.expensesCreated.Add(1)
			s.events.LogExpenseCreated(r.Context(), user.ID, res.Expense.ID, res.Expense.Amount.Cents, res.Expense.Category, res.Expense.Date.String())
			s.afterExpenseWrite(w, r, res, fmt.Sprintf("Saved %s for %s.", res.Expense.Amount, res.Expense.Category))
			return
		}
	}
	s.fail(w, r, err, log.OpCreate, s.showExpenses)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showExpenses)
		return
	}
	e, err := s.expenseFromForm(r, user.ID)
	if err == nil {
		e.ID = id
		var res services.ExpenseResult
		res, err = s.app.Expenses.UpdateExpense(r.Context(), e)
		if err == nil {
			s.afterExpenseWrite(w, r, res, "Expense updated.")
			return
		}
	}
	s.fail(w, r, err, log.OpUpdate, s.showExpenses)
}

// afterExpenseWrite reports triggered alerts and redirects back.
func (s *Server) afterExpenseWrite(w http.ResponseWriter, r *http.Request, res services.ExpenseResult, msg string) {
	s.invalidateWallet(r.Context(), res.Expense.UserID)

	triggered := s.triggeredAlerts(r, res)
	kind := FlashSuccess
	if len(triggered) > 0 {
		kind = FlashWarning
		msg += " " + strings.Join(triggered, "; ")
	}
	if res.Warning != "" {
		kind = FlashWarning
		msg = res.Warning
	}
	NewResponse().Redirect(backTo(r, "/expenses")).Flash(kind, msg).Write(w, r)
}

// triggeredAlerts counts and logs the alerts an expense write raised and
// returns one flash fragment per alert.
func (s *Server) triggeredAlerts(r *http.Request, res services.ExpenseResult) []string {
	var triggered []string
	for _, o := range res.Notified() {
		s.alertsDelivered.Add(1)
		s.events.LogAlertTriggered(r.Context(), res.Expense.UserID, o.Alert.ID, o.Alert.Category, o.Decision.Percent, string(o.Decision.Severity))
		triggered = append(triggered, fmt.Sprintf("%s %s %s (%.0f%%)", o.Decision.Severity.Icon(), o.Alert.Category, strings.ToLower(o.Decision.Severity.Title()), o.Decision.Percent))
	}
	return triggered
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err == nil {
		err = s.app.Expenses.DeleteExpense(r.Context(), user.ID, id)
	}
	if err != nil {
		s.fail(w, r, err, log.OpDelete, s.showExpenses)
		return
	}
	s.invalidateWallet(r.Context(), user.ID)
	NewResponse().Success("/expenses", "Expense deleted.").Write(w, r)
}

// handleExportCSV streams the expenses of ?from=&to= (default this month).
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	from, to, err := ParseRange(r.URL.Query(), s.today())
	if err != nil {
		http.Error(w, "from and to must be YYYY-MM-DD with from <= to", http.StatusUnprocessableEntity)
		return
	}
	rows, err := export.Range(r.Context(), s.app.Store.Expenses, user.ID, from, to)
	if err != nil {
		s.events.LogError(r.Context(), "CSV export failed", err, log.OpExport, log.NewFields().WithUser(user.ID))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(from, to)))
	if err := export.WriteCSV(w, rows); err != nil {
		s.events.LogError(r.Context(), "CSV write failed", err, log.OpExport, log.NewFields().WithUser(user.ID))
	}
}
