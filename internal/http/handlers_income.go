package http

import (
	"fmt"
	"net/http"
	"strings"

	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
	"pisoheroes/internal/wallet"
)

type incomeView struct {
	Income  []core.DailyIncome
	Sources []core.IncomeSource
}

func (s *Server) handleIncome(w http.ResponseWriter, r *http.Request) {
	s.showIncome(w, r, http.StatusOK, nil)
}

func (s *Server) showIncome(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	list, err := s.app.Income.RecentIncome(r.Context(), user.ID, 50)
	if err != nil {
		s.events.LogError(r.Context(), "List income failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load income", http.StatusInternalServerError)
		return
	}
	s.render(w, r, status, "income", "Income", incomeView{Income: list, Sources: core.IncomeSources}, flash)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	amount, err := ParseMoney(r.PostFormValue("amount"))
	if err != nil {
		s.fail(w, r, err, log.OpCreate, s.showIncome)
		return
	}
	date, err := ParseDateValue(r.PostFormValue("date"), s.today())
	if err != nil {
		s.fail(w, r, err, log.OpCreate, s.showIncome)
		return
	}
	in, err := s.app.Income.AddIncome(r.Context(), core.DailyIncome{
		UserID: user.ID,
		Amount: amount,
		Source: core.IncomeSource(sanitizeInput(r.PostFormValue("source"))),
		Date:   date,
		Notes:  sanitizeInput(r.PostFormValue("notes")),
	})
	if err != nil {
		s.fail(w, r, err, log.OpCreate, s.showIncome)
		return
	}
	s.invalidateWallet(r.Context(), user.ID)
	NewResponse().Success(backTo(r, "/income"), fmt.Sprintf("Added %s from %s.", in.Amount, in.Source.Label())).Write(w, r)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err == nil {
		err = s.app.Income.DeleteIncome(r.Context(), user.ID, id)
	}
	if err != nil {
		s.fail(w, r, err, log.OpDelete, s.showIncome)
		return
	}
	s.invalidateWallet(r.Context(), user.ID)
	NewResponse().Success("/income", "Income deleted.").Write(w, r)
}

type settingsView struct {
	MonthlyAllowance core.Money
	DailyAllowance   core.Money
	DaysInMonth      int
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.showSettings(w, r, http.StatusOK, nil)
}

func (s *Server) showSettings(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	monthly, err := s.app.Settings.MonthlyAllowance(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "Load settings failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load settings", http.StatusInternalServerError)
		return
	}
	today := s.today()
	s.render(w, r, status, "settings", "Settings", settingsView{
		MonthlyAllowance: monthly,
		DailyAllowance:   wallet.DailyAllowance(monthly, today),
		DaysInMonth:      today.DaysInMonth(),
	}, flash)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	amount, err := parseAllowance(r.PostFormValue("monthly_allowance"))
	if err == nil {
		_, err = s.app.Settings.SetMonthlyAllowance(r.Context(), user.ID, amount)
	}
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showSettings)
		return
	}
	s.invalidateWallet(r.Context(), user.ID)
	NewResponse().Success("/settings", fmt.Sprintf("Monthly allowance set to %s.", amount)).Write(w, r)
}

// parseAllowance accepts zero, which switches the daily share off.
func parseAllowance(v string) (core.Money, error) {
	if strings.Trim(v, " 0.,₱") == "" {
		return core.Money{}, nil
	}
	return ParseMoney(v)
}
