package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
	"pisoheroes/internal/services"
)

type goalsView struct {
	Active    []core.SavingsGoal
	Completed []core.SavingsGoal
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	s.showGoals(w, r, http.StatusOK, nil)
}

func (s *Server) showGoals(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	goals, err := s.app.Goals.ListGoals(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "List goals failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load goals", http.StatusInternalServerError)
		return
	}
	var v goalsView
	for _, g := range goals {
		if g.Status == core.GoalCompleted {
			v.Completed = append(v.Completed, g)
		} else {
			v.Active = append(v.Active, g)
		}
	}
	s.render(w, r, status, "goals", "Savings goals", v, flash)
}

type goalView struct {
	Goal         core.SavingsGoal
	Transactions []core.SavingsTransaction
	DaysLeft     int
	HasDeadline  bool
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	s.showGoal(w, r, http.StatusOK, nil)
}

// showGoal renders one goal with its history. Rejected goal forms land here,
// or on the list when the goal itself is gone.
func (s *Server) showGoal(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	id, err := PathID(r)
	if err != nil {
		s.showGoals(w, r, http.StatusNotFound, &Flash{Kind: FlashError, Message: "Not found"})
		return
	}
	g, err := s.app.Goals.GetGoal(r.Context(), user.ID, id)
	if err != nil {
		if StatusFor(err) == http.StatusNotFound {
			s.showGoals(w, r, http.StatusNotFound, &Flash{Kind: FlashError, Message: "Not found"})
			return
		}
		s.events.LogError(r.Context(), "Load goal failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load goal", http.StatusInternalServerError)
		return
	}
	txs, err := s.app.Goals.Transactions(r.Context(), user.ID, id)
	if err != nil {
		s.events.LogError(r.Context(), "Load goal transactions failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load goal", http.StatusInternalServerError)
		return
	}
	days, ok := g.DaysLeft(s.today())
	s.render(w, r, status, "goal", g.Name, goalView{Goal: g, Transactions: txs, DaysLeft: days, HasDeadline: ok}, flash)
}

func goalEditFromForm(r *http.Request) (services.GoalEdit, error) {
	target, err := ParseMoney(r.PostFormValue("target_amount"))
	if err != nil {
		return services.GoalEdit{}, err
	}
	deadline, err := ParseOptionalDate(r.PostFormValue("target_date"))
	if err != nil {
		return services.GoalEdit{}, err
	}
	return services.GoalEdit{
		Name:        sanitizeInput(r.PostFormValue("name")),
		Description: sanitizeInput(r.PostFormValue("description")),
		Target:      target,
		TargetDate:  deadline,
	}, nil
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	edit, err := goalEditFromForm(r)
	var g core.SavingsGoal
	if err == nil {
		g, err = s.app.Goals.CreateGoal(r.Context(), core.SavingsGoal{
			UserID:      user.ID,
			Name:        edit.Name,
			Description: edit.Description,
			Target:      edit.Target,
			TargetDate:  edit.TargetDate,
		})
	}
	if err != nil {
		s.fail(w, r, err, log.OpCreate, s.showGoals)
		return
	}
	NewResponse().Success("/goals", fmt.Sprintf("Goal %q created.", g.Name)).Write(w, r)
}

func goalURL(id int64) string {
	return "/goals/" + strconv.FormatInt(id, 10)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showGoals)
		return
	}
	edit, err := goalEditFromForm(r)
	if err == nil {
		_, err = s.app.Goals.UpdateGoal(r.Context(), user.ID, id, edit)
	}
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showGoal)
		return
	}
	NewResponse().Success(goalURL(id), "Goal updated.").Write(w, r)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err == nil {
		err = s.app.Goals.DeleteGoal(r.Context(), user.ID, id)
	}
	if err != nil {
		s.fail(w, r, err, log.OpDelete, s.showGoals)
		return
	}
	NewResponse().Success("/goals", "Goal deleted.").Write(w, r)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, log.OpContribute, s.showGoals)
		return
	}
	amount, err := ParseMoney(r.PostFormValue("amount"))
	if err != nil {
		s.fail(w, r, err, log.OpContribute, s.showGoal)
		return
	}
	fromWallet := formBool(r, "from_wallet")
	res, err := s.app.Goals.Contribute(r.Context(), services.Contribution{
		UserID:     user.ID,
		GoalID:     id,
		Amount:     amount,
		Notes:      sanitizeInput(r.PostFormValue("notes")),
		FromWallet: fromWallet,
		Date:       s.today(),
	})
	if err != nil {
		s.fail(w, r, err, log.OpContribute, s.showGoal)
		return
	}
	if fromWallet {
		s.invalidateWallet(r.Context(), user.ID)
	}

	msg := fmt.Sprintf("Added %s to %q.", amount, res.Goal.Name)
	if res.Completed {
		msg = fmt.Sprintf("🎉 Goal %q reached!", res.Goal.Name)
	} else if n := len(res.Milestones); n > 0 {
		msg += fmt.Sprintf(" %d%% milestone reached.", res.Milestones[n-1])
	}
	kind := FlashSuccess
	if res.Transfer != nil {
		if triggered := s.triggeredAlerts(r, *res.Transfer); len(triggered) > 0 {
			kind = FlashWarning
			msg += " " + strings.Join(triggered, "; ")
		}
	}
	NewResponse().Redirect(backTo(r, goalURL(id))).Flash(kind, msg).Write(w, r)
}

func (s *Server) handleResetGoal(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showGoals)
		return
	}
	returned, err := s.app.Goals.ResetGoal(r.Context(), user.ID, id)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showGoal)
		return
	}
	s.invalidateWallet(r.Context(), user.ID)
	NewResponse().Success(goalURL(id), fmt.Sprintf("Goal reset, %s returned to your wallet.", returned)).Write(w, r)
}
