package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pisoheroes/internal/core"
)

var pageNames = []string{
	"login", "dashboard", "expenses", "income", "alerts",
	"goals", "goal", "settings", "notifications", "preferences",
	"reminders", "analytics", "audit",
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.String() },
	"decimal": func(m core.Money) string {
		if m.Cents == 0 {
			return ""
		}
		return m.Decimal()
	},
	"pct": func(p float64) string { return fmt.Sprintf("%.1f%%", p) },
	"bar": func(p float64) int {
		switch {
		case p < 0:
			return 0
		case p > 100:
			return 100
		}
		return int(p)
	},
	"day": func(d core.Date) string {
		if d.IsZero() {
			return "—"
		}
		return d.Format("Jan 2, 2006")
	},
	"iso": func(d core.Date) string { return d.String() },
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 15:04")
	},
	"categoryIcon": core.CategoryIcon,
	"lower":        strings.ToLower,
	"stamp": func(t time.Time, loc *time.Location) string {
		if t.IsZero() {
			return ""
		}
		return t.In(loc).Format("Jan 2, 2006 15:04")
	},
	"dueInput": func(t *time.Time, loc *time.Location) string {
		if t == nil {
			return ""
		}
		return t.In(loc).Format(dueLayout)
	},
}

// pages holds one template set per page, each parsed together with the
// shared layout so every page can define its own "content".
type pages map[string]*template.Template

func parsePages(fsys fs.FS) (pages, error) {
	out := make(pages, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).
			ParseFS(fsys, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// pageData is what every template receives.
type pageData struct {
	Title  string
	Nav    string
	User   *core.User
	CSRF   string
	Flash  *Flash
	Unread int64
	Today  core.Date
	Data   any
}

// render executes page into a buffer first so a template error still yields
// a clean 500. A nil flash shows the one carried over by a redirect.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, flash *Flash) {
	t, ok := s.pages[name]
	if !ok {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name, "path", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	pd := pageData{
		Title: title,
		Nav:   name,
		Flash: flash,
		Today: s.today(),
		Data:  data,
	}
	if flash == nil {
		pd.Flash = popFlash(w, r)
	}
	if info, ok := sessionFrom(r.Context()); ok {
		user := info.User
		pd.User = &user
		pd.CSRF = info.CSRF
		if n, err := s.app.Notifications.UnreadCount(r.Context(), user.ID); err == nil {
			pd.Unread = n
		} else {
			slog.WarnContext(r.Context(), "Failed to count unread notifications", "user_id", user.ID, "error", err)
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// view re-renders a page with a status and message, used when a form
// submission is rejected.
type view func(w http.ResponseWriter, r *http.Request, status int, flash *Flash)

// fail answers a form submission that could not be applied by re-rendering
// the page it came from with the mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string, show view) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.events.LogError(r.Context(), "Request failed", err, op, nil)
	} else {
		slog.InfoContext(r.Context(), "Rejected form submission", "path", r.URL.Path, "status", status, "error", err)
	}
	show(w, r, status, &Flash{Kind: FlashError, Message: UserMessage(err)})
}
