package http

import (
	"errors"
	"net/http"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
	"pisoheroes/internal/notify"
)

const historyPerPage = 25

type notificationsView struct {
	Items    []core.NotificationLog
	Page     int
	PrevPage int
	NextPage int
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	page := ParseLimit(r.URL.Query(), "page", 1, 1000)
	items, err := s.app.Notifications.History(r.Context(), user.ID, page, historyPerPage)
	if err != nil {
		s.events.LogError(r.Context(), "Notification history failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load notifications", http.StatusInternalServerError)
		return
	}
	v := notificationsView{Items: items, Page: page}
	if page > 1 {
		v.PrevPage = page - 1
	}
	if len(items) == historyPerPage {
		v.NextPage = page + 1
	}
	s.render(w, r, http.StatusOK, "notifications", "Notifications", v, nil)
}

type preferencesView struct {
	Prefs         core.NotificationPreference
	HasEmail      bool
	Email         string
	EmailBackend  string
	PushAvailable bool
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	s.showPreferences(w, r, http.StatusOK, nil)
}

func (s *Server) showPreferences(w http.ResponseWriter, r *http.Request, status int, flash *Flash) {
	user := currentUser(r)
	prefs, err := s.app.Notifications.Preferences(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "Load preferences failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load preferences", http.StatusInternalServerError)
		return
	}
	s.render(w, r, status, "preferences", "Notification preferences", preferencesView{
		Prefs:         prefs,
		HasEmail:      user.Email != "",
		Email:         user.Email,
		EmailBackend:  s.app.Mailer.Name(),
		PushAvailable: s.app.Push != nil,
	}, flash)
}

// handleSavePreferences accepts the preferences form or an equivalent JSON
// body.
func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.showPreferences(w, r, http.StatusBadRequest, &Flash{Kind: FlashError, Message: "Invalid request body"})
		return
	}
	prefs := core.NotificationPreference{
		UserID:              user.ID,
		EmailEnabled:        p.Bool("email_enabled"),
		EmailBudgetAlerts:   p.Bool("email_budget_alerts"),
		EmailGoalMilestones: p.Bool("email_goal_milestones"),
		PushEnabled:         p.Bool("push_enabled"),
		PushToken:           p.Get("push_token"),
	}
	if err := s.app.Notifications.SavePreferences(r.Context(), prefs); err != nil {
		if p.IsJSON() {
			JSONError(StatusFor(err), UserMessage(err)).Write(w, r)
			return
		}
		s.fail(w, r, err, log.OpUpdate, s.showPreferences)
		return
	}
	if p.IsJSON() {
		NewResponse().Write(w, r)
		return
	}
	NewResponse().Success("/notifications/preferences", "Preferences saved.").Write(w, r)
}

type notificationJSON struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Icon      string    `json:"icon"`
	Status    string    `json:"status"`
	Unread    bool      `json:"unread"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationJSON(items []core.NotificationLog) []notificationJSON {
	out := make([]notificationJSON, 0, len(items))
	for _, n := range items {
		out = append(out, notificationJSON{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Category:  string(n.Category),
			Icon:      core.CategoryIcon(n.Category),
			Status:    string(n.Status),
			Unread:    n.Unread(),
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleAPIRecent(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	limit := ParseLimit(r.URL.Query(), "limit", 10, 50)
	items, err := s.app.Notifications.Recent(r.Context(), user.ID, limit)
	if err != nil {
		s.events.LogError(r.Context(), "Recent notifications failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		JSONError(http.StatusInternalServerError, UserMessage(err)).Write(w, r)
		return
	}
	NewResponse().Field("notifications", toNotificationJSON(items)).Write(w, r)
}

func (s *Server) handleAPIUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	n, err := s.app.Notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "Unread count failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		JSONError(http.StatusInternalServerError, UserMessage(err)).Write(w, r)
		return
	}
	NewResponse().Field("count", n).Write(w, r)
}

func (s *Server) handleAPIMarkRead(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := PathID(r)
	if err == nil {
		err = s.app.Notifications.MarkRead(r.Context(), user.ID, id)
	}
	if err != nil {
		JSONError(StatusFor(err), UserMessage(err)).Write(w, r)
		return
	}
	NewResponse().Field("id", id).Write(w, r)
}

func (s *Server) handleAPIMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	n, err := s.app.Notifications.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "Mark all read failed", err, log.OpUpdate, log.NewFields().WithUser(user.ID))
		JSONError(http.StatusInternalServerError, UserMessage(err)).Write(w, r)
		return
	}
	NewResponse().Field("marked", n).Write(w, r)
}

func (s *Server) handleAPITestEmail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	res, err := s.app.Notifications.SendTestEmail(r.Context(), user.ID)
	switch {
	case err == nil:
		NewResponse().
			Field("message", "Test email sent to "+user.Email).
			Field("log_id", res.LogID).
			Write(w, r)
	case errors.Is(err, notify.ErrEmailNotConfigured):
		JSONError(http.StatusServiceUnavailable, "Email is not configured on this server").Write(w, r)
	case StatusFor(err) != http.StatusInternalServerError:
		JSONError(StatusFor(err), UserMessage(err)).Write(w, r)
	default:
		s.events.LogError(r.Context(), "Test email failed", err, log.OpCreate, log.NewFields().WithUser(user.ID))
		JSONError(http.StatusBadGateway, "Email delivery failed").Write(w, r)
	}
}
