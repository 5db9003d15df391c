package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"pisoheroes/internal/analytics"
	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
	"pisoheroes/internal/export"
	"pisoheroes/internal/log"
)

type analyticsView struct {
	Range  analytics.Range
	Report analytics.Report
	Trends []analytics.MonthPoint
}

// analyticsRange reads ?from=&to=, defaulting to this month up to today.
func (s *Server) analyticsRange(r *http.Request) (analytics.Range, error) {
	q := r.URL.Query()
	return s.app.Analytics.ParseRange(q.Get("from"), q.Get("to"))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	rng, err := s.analyticsRange(r)
	if err != nil {
		slog.InfoContext(r.Context(), "Rejected analytics range", "query", r.URL.RawQuery, "error", err)
		s.showAnalytics(w, r, http.StatusUnprocessableEntity, user, s.app.Analytics.DefaultRange(), &Flash{Kind: FlashError, Message: UserMessage(err)})
		return
	}
	s.showAnalytics(w, r, http.StatusOK, user, rng, nil)
}

func (s *Server) showAnalytics(w http.ResponseWriter, r *http.Request, status int, user core.User, rng analytics.Range, flash *Flash) {
	rep, err := s.app.Analytics.Report(r.Context(), user.ID, rng)
	if err != nil {
		s.events.LogError(r.Context(), "Analytics report failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load analytics", http.StatusInternalServerError)
		return
	}
	trends, err := s.app.Analytics.MonthlyTrends(r.Context(), user.ID)
	if err != nil {
		s.events.LogError(r.Context(), "Monthly trends failed", err, log.OpRead, log.NewFields().WithUser(user.ID))
		http.Error(w, "could not load analytics", http.StatusInternalServerError)
		return
	}
	s.render(w, r, status, "analytics", "Analytics", analyticsView{Range: rng, Report: rep, Trends: trends}, flash)
}

// analyticsAPI adapts one series loader into a JSON endpoint answering
// {"success": true, "data": [...]}.
func analyticsAPI[T any](s *Server, name string, load func(r *http.Request, userID int64, rng analytics.Range) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		rng, err := s.analyticsRange(r)
		if err != nil {
			JSONError(http.StatusBadRequest, UserMessage(err)).Write(w, r)
			return
		}
		data, err := load(r, user.ID, rng)
		if err != nil {
			fields := log.NewFields().WithUser(user.ID)
			fields["series"] = name
			s.events.LogError(r.Context(), "Analytics query failed", err, log.OpRead, fields)
			JSONError(http.StatusInternalServerError, UserMessage(err)).Write(w, r)
			return
		}
		if data == nil {
			data = []T{}
		}
		NewResponse().Field("data", data).Write(w, r)
	}
}

func (s *Server) analyticsRoutes(page func(string, http.HandlerFunc)) {
	a := s.app.Analytics
	page("GET /analytics", s.handleAnalytics)
	page("GET /analytics/export.csv", s.handleAnalyticsExport)
	page("GET /api/analytics/daily-spending", analyticsAPI(s, "daily", func(r *http.Request, id int64, rng analytics.Range) ([]analytics.DailyPoint, error) {
		return a.DailySpending(r.Context(), id, rng)
	}))
	page("GET /api/analytics/category-breakdown", analyticsAPI(s, "category", func(r *http.Request, id int64, rng analytics.Range) ([]analytics.CategoryPoint, error) {
		return a.CategoryBreakdown(r.Context(), id, rng)
	}))
	page("GET /api/analytics/weekly-comparison", analyticsAPI(s, "weekly", func(r *http.Request, id int64, rng analytics.Range) ([]analytics.WeekPoint, error) {
		return a.WeeklyComparison(r.Context(), id, rng)
	}))
	page("GET /api/analytics/monthly-trends", analyticsAPI(s, "monthly", func(r *http.Request, id int64, _ analytics.Range) ([]analytics.MonthPoint, error) {
		return a.MonthlyTrends(r.Context(), id)
	}))
	page("GET /api/analytics/hourly-patterns", analyticsAPI(s, "hourly", func(r *http.Request, id int64, rng analytics.Range) ([]analytics.HourPoint, error) {
		return a.HourlyPatterns(r.Context(), id, rng)
	}))
}

// handleAnalyticsExport streams the sectioned report CSV for ?from=&to=.
func (s *Server) handleAnalyticsExport(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	rng, err := s.analyticsRange(r)
	if err != nil {
		http.Error(w, UserMessage(err), http.StatusBadRequest)
		return
	}
	rep, err := s.app.Analytics.Report(r.Context(), user.ID, rng)
	if err != nil {
		s.events.LogError(r.Context(), "Report export failed", err, log.OpExport, log.NewFields().WithUser(user.ID))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.app.Audit.Record(r.Context(), audit.Entry(user.ID, core.AuditRead, core.ResourceReport, nil, map[string]any{
		"format": "csv",
		"from":   rng.From.String(),
		"to":     rng.To.String(),
		"rows":   len(rep.Expenses),
	}))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.ReportFilename(rng.From, rng.To)))
	if err := export.WriteReport(w, rep); err != nil {
		s.events.LogError(r.Context(), "Report write failed", err, log.OpExport, log.NewFields().WithUser(user.ID))
	}
}
