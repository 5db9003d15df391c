package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
	"pisoheroes/internal/services"
)

// dueLayout is the value format of a datetime-local input.
const dueLayout = "2006-01-02T15:04"

type reminderSection struct {
	Title string
	Items []core.Reminder
	Empty string
}

type remindersView struct {
	Sections    []reminderSection
	Frequencies []core.ReminderFrequency
	Location    *time.Location
}

// reminderSections lists the non-empty groups of b. Upcoming is always
// shown.
func reminderSections(b services.ReminderBoard) []reminderSection {
	var out []reminderSection
	if len(b.Overdue) > 0 {
		out = append(out, reminderSection{Title: "Overdue", Items: b.Overdue})
	}
	out = append(out, reminderSection{Title: "Upcoming", Items: b.Upcoming, Empty: "Nothing coming up."})
	if len(b.Completed) > 0 {
		out = append(out, reminderSection{Title: "Done", Items: b.Completed})
	}
	return out
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	s.showReminders(w, r, http.StatusOK, nil)
}

func (s *Server) showReminders(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	board, err := s.app.Reminders.Board(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "List reminders failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load reminders", http.StatusInternalServerError)
		return
	}
	s.render(w, r, status, "reminders", "Reminders", remindersView{
		Sections:    reminderSections(board),
		Frequencies: core.ReminderFrequencies,
		Location:    s.app.Location,
	}, flash)
}

// parseDue reads a datetime-local value in loc. Empty means no due time.
func parseDue(v string, loc *time.Location) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dueLayout, v, loc)
	if err != nil {
		return nil, core.ErrInvalidDate
	}
	return &t, nil
}

// reminderFromForm reads the editable reminder fields into m.
func (s *Server) reminderFromForm(r *http.Request, m core.Reminder) (core.Reminder, error) {
	due, err := parseDue(r.PostFormValue("due_at"), s.app.Location)
	if err != nil {
		return m, err
	}
	offset := 0
	if v := strings.TrimSpace(r.PostFormValue("pre_alert_offset_days")); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return m, core.ErrInvalidPreAlert
		}
	}
	m.Title = sanitizeInput(r.PostFormValue("title"))
	m.Description = sanitizeInput(r.PostFormValue("description"))
	m.DueAt = due
	m.Frequency = core.ReminderFrequency(strings.TrimSpace(r.PostFormValue("frequency")))
	m.PreAlertOffsetDays = offset
	m.NotifyEmail = formBool(r, "notify_email")
	m.NotifyInApp = formBool(r, "notify_in_app")
	return m, nil
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	m, err := s.reminderFromForm(r, core.Reminder{UserID: user.ID})
	if err == nil {
		m, err = s.app.Reminders.CreateReminder(r.Context(), m)
	}
	if err != nil {
		s.fail(w, r, err, log.OpCreate, s.showReminders)
		return
	}
	NewResponse().Success("/reminders", "Reminder \""+m.Title+"\" added.").Write(w, r)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showReminders)
		return
	}
	m, err := s.app.Reminders.GetReminder(r.Context(), user.ID, id)
	if err == nil {
		m, err = s.reminderFromForm(r, m)
	}
	if err == nil {
		_, err = s.app.Reminders.UpdateReminder(r.Context(), m)
	}
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showReminders)
		return
	}
	NewResponse().Success("/reminders", "Reminder updated.").Write(w, r)
}

func (s *Server) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	var m core.Reminder
	if err == nil {
		m, err = s.app.Reminders.ToggleReminder(r.Context(), user.ID, id)
	}
	if err != nil {
		s.fail(w, r, err, log.OpUpdate, s.showReminders)
		return
	}
	msg := "Reminder reopened."
	if m.Completed {
		msg = "Reminder marked as done."
	}
	NewResponse().Success("/reminders", msg).Write(w, r)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err == nil {
		err = s.app.Reminders.DeleteReminder(r.Context(), user.ID, id)
	}
	if err != nil {
		s.fail(w, r, err, log.OpDelete, s.showReminders)
		return
	}
	NewResponse().Success("/reminders", "Reminder deleted.").Write(w, r)
}
