package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pisoheroes/internal/alerts"
	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
)

type alertsView struct {
	Alerts     []core.BudgetAlert
	Budgets    map[int64]alerts.BudgetLine
	Categories []string
	MinPercent int
	MaxPercent int
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	s.showAlerts(w, r, http.StatusOK, nil)
}

func (s *Server) showAlerts(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	today := s.today()

	list, err := s.app.Alerts.ListAlerts(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "List alerts failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load alerts", http.StatusInternalServerError)
		return
	}
	lines, err := alerts.BudgetVsActual(r.Context(), s.app.Store.Alerts, s.app.Store.Expenses, user.ID, today.MonthStart(), today)
	if err != nil {
		s.events.LogError(r.Context(), "Budget report failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load alerts", http.StatusInternalServerError)
		return
	}
	byID := make(map[int64]alerts.BudgetLine, len(lines))
	for _, l := range lines {
		byID[l.Alert.ID] = l
	}

	s.render(w, r, status, "alerts", "Budget alerts", alertsView{
		Alerts:     list,
		Budgets:    byID,
		Categories: core.ExpenseCategories,
		MinPercent: core.MinThresholdPercent,
		MaxPercent: core.MaxThresholdPercent,
	}, flash)
}

// alertFromForm reads the editable alert fields into a.
func alertFromForm(r *http.Request, a core.BudgetAlert) (core.BudgetAlert, error) {
	limit, err := ParseMoney(r.PostFormValue("amount_limit"))
	if err != nil {
		return a, err
	}
	threshold, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("threshold_percent")))
	if err != nil {
		return a, core.ErrInvalidThreshold
	}
	a.Category = sanitizeInput(r.PostFormValue("category"))
	a.Limit = limit
	a.ThresholdPercent = threshold
	a.NotifyDashboard = formBool(r, "notify_dashboard")
	a.NotifyEmail = formBool(r, "notify_email")
	a.NotifyPush = formBool(r, "notify_push")
	return a, nil
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	a, err := alertFromForm(r, core.BudgetAlert{UserID: user.ID, Active: true})
	if err == nil {
		a, err = s.app.Alerts.CreateAlert(r.Context(), a)
	}
	if err != nil {
		s.fail(w, r, err, log.OpCreate, s.showAlerts)
		return
	}
	NewResponse().Success("/alerts", fmt.Sprintf("Alert for %s at %d%% of %s created.", a.Category, a.ThresholdPercent, a.Limit)).Write(w, r)
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showAlerts)
		return
	}
	a, err := s.app.Alerts.GetAlert(r.Context(), user.ID, id)
	if err == nil {
		a, err = alertFromForm(r, a)
	}
	if err == nil {
		a.Active = formBool(r, "active")
		err = s.app.Alerts.UpdateAlert(r.Context(), a)
	}
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showAlerts)
		return
	}
	NewResponse().Success("/alerts", "Alert updated.").Write(w, r)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err == nil {
		err = s.app.Alerts.DeleteAlert(r.Context(), user.ID, id)
	}
	if err != nil {
		s.fail(w, r, err, log.OpDelete, s.showAlerts)
		return
	}
	NewResponse().Success("/alerts", "Alert deleted.").Write(w, r)
}
