package http

import (
	"fmt"
	"net/http"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/export"
	"pisoheroes/internal/log"
	"pisoheroes/internal/services"
)

type auditView struct {
	services.AuditView
	Actions    []core.AuditAction
	Resources  []core.AuditResource
	DayChoices []int
	Location   *time.Location
}

func auditQuery(r *http.Request) services.AuditQuery {
	q := r.URL.Query()
	return services.ParseAuditQuery(q.Get("action_type"), q.Get("resource_type"), q.Get("days"), q.Get("search"))
}

// handleAudit shows the signed-in user's own audit trail.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	v, err := s.app.AuditLog.View(r.Context(), user.ID, auditQuery(r))
	if err != nil {
		s.events.LogError(r.Context(), "Audit view failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load audit logs", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "audit", "Activity log", auditView{
		AuditView:  v,
		Actions:    core.AuditActions,
		Resources:  core.AuditResources,
		DayChoices: []int{1, 7, 30, 90, 365},
		Location:   s.app.Location,
	}, nil)
}

func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	rows, err := s.app.AuditLog.Export(r.Context(), user.ID, auditQuery(r))
	if err != nil {
		s.events.LogError(r.Context(), "Audit export failed", err, log.OpExport, log.NewFields().WithUser(user.ID))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.AuditFilename(s.now().In(s.app.Location))))
	if err := export.WriteAuditCSV(w, rows, s.app.Location); err != nil {
		s.events.LogError(r.Context(), "Audit CSV write failed", err, log.OpExport, log.NewFields().WithUser(user.ID))
	}
}
