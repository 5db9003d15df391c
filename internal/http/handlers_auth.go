package http

import (
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
)

type loginView struct {
	Username string
	Next     string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.sessions.UserID(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", "Sign in", loginView{Next: safeNext(r.URL.Query().Get("next"))}, nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := sanitizeInput(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	next := safeNext(r.PostFormValue("next"))

	user, err := s.app.Store.Users.GetByUsername(r.Context(), username)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	}
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.events.LogError(r.Context(), "Login lookup failed", err, log.OpRead, nil)
		}
		slog.WarnContext(r.Context(), "Failed login", "username", username, "client_ip", s.detector.ExtractClientIP(r))
		// user.ID is zero when the username is unknown.
		s.app.Audit.Record(r.Context(), audit.Entry(user.ID, core.AuditLoginFailed, core.ResourceUser, user.ID, map[string]any{
			"username": username,
		}))
		s.render(w, r, http.StatusUnauthorized, "login", "Sign in",
			loginView{Username: username, Next: next},
			&Flash{Kind: FlashError, Message: "Wrong username or password"})
		return
	}

	s.sessions.Issue(w, user.ID)
	slog.InfoContext(r.Context(), "User signed in", "user_id", user.ID)
	s.app.Audit.Record(r.Context(), audit.Entry(user.ID, core.AuditLogin, core.ResourceUser, user.ID, nil))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if userID, _, ok := s.sessions.UserID(r); ok {
		s.app.Audit.Record(r.Context(), audit.Entry(userID, core.AuditLogout, core.ResourceUser, userID, nil))
		slog.InfoContext(r.Context(), "User signed out", "user_id", userID)
	}
	s.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
