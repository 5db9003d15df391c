package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/backend"
	"pisoheroes/internal/cache"
	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
	"pisoheroes/internal/middleware/ratelimit"
	"pisoheroes/internal/middleware/security"
	"pisoheroes/internal/middleware/trace"
	"pisoheroes/internal/wallet"
	appweb "pisoheroes/web"
)

type Server struct {
	http.Server
	app      *backend.App
	pages    pages
	sessions *Sessions

	// Wallet summaries keyed "<user>:<date>"; dropped per user on any write.
	wallets *cache.LRUCache[wallet.Summary]
	caches  *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	events   *log.StructuredLogger

	started         time.Time
	now             func() time.Time
	expensesCreated atomic.Int64
	alertsDelivered atomic.Int64
	shutdownOnce    sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, app *backend.App) *Server {
	logger := log.ForComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		app:      app,
		sessions: NewSessions(app.Config.SessionSecret, strings.HasPrefix(app.Config.BaseURL, "https://")),
		wallets:  cache.NewLRUCache[wallet.Summary](500, 2*time.Minute),
		caches:   cache.NewManager(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: app.Config.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		events:   log.NewStructuredLogger(logger),
		started:  time.Now(),
		now:      time.Now,
	}
	s.caches.Register("wallet", s.wallets)
	s.caches.StartCleanup(5 * time.Minute)

	p, err := parsePages(appweb.Templates())
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.pages = p

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, func(r *http.Request) bool {
		return r.Method == http.MethodPost
	})(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	page := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.NoStore(s.requireUser(h)))
	}

	page("GET /{$}", s.handleDashboard)
	page("GET /wallet", s.handleWallet)

	page("GET /expenses", s.handleExpenses)
	page("POST /expenses", s.handleCreateExpense)
	page("POST /expenses/{id}/edit", s.handleUpdateExpense)
	page("POST /expenses/{id}/delete", s.handleDeleteExpense)
	page("GET /export/expenses.csv", s.handleExportCSV)

	page("GET /income", s.handleIncome)
	page("POST /income", s.handleCreateIncome)
	page("POST /income/{id}/delete", s.handleDeleteIncome)

	page("GET /alerts", s.handleAlerts)
	page("POST /alerts", s.handleCreateAlert)
	page("POST /alerts/{id}/edit", s.handleUpdateAlert)
	page("POST /alerts/{id}/delete", s.handleDeleteAlert)

	page("GET /goals", s.handleGoals)
	page("POST /goals", s.handleCreateGoal)
	page("GET /goals/{id}", s.handleGoal)
	page("POST /goals/{id}/edit", s.handleUpdateGoal)
	page("POST /goals/{id}/delete", s.handleDeleteGoal)
	page("POST /goals/{id}/contribute", s.handleContribute)
	page("POST /goals/{id}/reset", s.handleResetGoal)

	page("GET /reminders", s.handleReminders)
	page("POST /reminders", s.handleCreateReminder)
	page("POST /reminders/{id}/edit", s.handleUpdateReminder)
	page("POST /reminders/{id}/complete", s.handleCompleteReminder)
	page("POST /reminders/{id}/delete", s.handleDeleteReminder)

	s.analyticsRoutes(page)

	page("GET /audit", s.handleAudit)
	page("GET /audit/export.csv", s.handleAuditExport)

	page("GET /settings", s.handleSettings)
	page("POST /settings", s.handleSaveSettings)

	page("GET /notifications", s.handleNotifications)
	page("GET /notifications/preferences", s.handlePreferences)
	page("POST /notifications/preferences", s.handleSavePreferences)

	page("GET /api/notifications/recent", s.handleAPIRecent)
	page("GET /api/notifications/unread-count", s.handleAPIUnreadCount)
	page("POST /api/notifications/{id}/read", s.handleAPIMarkRead)
	page("POST /api/notifications/read-all", s.handleAPIMarkAllRead)
	page("POST /api/notifications/test-email", s.handleAPITestEmail)
}

// requireUser resolves the session user, checks the CSRF token on writes
// and tags the request logger with the user id.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api := strings.HasPrefix(r.URL.Path, "/api/")
		userID, session, ok := s.sessions.UserID(r)
		if !ok {
			s.unauthorized(w, r, api)
			return
		}
		user, err := s.app.Store.Users.Get(r.Context(), userID)
		if err != nil {
			slog.WarnContext(r.Context(), "Session for unknown user", "user_id", userID, "error", err)
			s.sessions.Clear(w)
			s.unauthorized(w, r, api)
			return
		}
		if r.Method == http.MethodPost && !s.sessions.ValidCSRF(r, session) {
			slog.WarnContext(r.Context(), "CSRF token mismatch", "user_id", userID, "path", r.URL.Path)
			s.app.Audit.Record(r.Context(), audit.Entry(userID, core.AuditAccessDenied, core.ResourceSystem, r.URL.Path, map[string]any{
				"reason": "csrf",
				"method": r.Method,
			}))
			if api {
				JSONError(http.StatusForbidden, "invalid CSRF token").Write(w, r)
				return
			}
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}

		ctx := withSession(r.Context(), sessionInfo{User: user, CSRF: s.sessions.CSRFToken(session)})
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, user.ID))
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, api bool) {
	if api {
		JSONError(http.StatusUnauthorized, "login required").Write(w, r)
		return
	}
	target := "/login"
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) today() core.Date {
	return core.Today(s.now(), s.app.Location)
}

// Shutdown stops background housekeeping and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and both stores.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.pages == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}
	if err := s.app.Ping(ctx); err != nil {
		checks["stores"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["stores"] = "ok"
	}
	switch {
	case s.app.Push == nil:
		checks["push"] = "not_configured"
	case s.app.Push.Healthy():
		checks["push"] = "ok"
	default:
		// Push is optional; a broken broker only degrades that channel.
		checks["push"] = "degraded"
	}
	checks["email"] = s.app.Mailer.Name()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	tm := s.tracer.GetMetrics()
	ws := s.wallets.Stats()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("http_response_time_avg_ms", "gauge", "Average response time", tm.AverageResponseTime.Milliseconds())
	metric("expenses_created_total", "counter", "Expenses created through the web UI", s.expensesCreated.Load())
	metric("budget_alerts_delivered_total", "counter", "Budget alerts that produced a notification", s.alertsDelivered.Load())
	metric("wallet_cache_hits_total", "counter", "Wallet cache hits", ws.Hits)
	metric("wallet_cache_misses_total", "counter", "Wallet cache misses", ws.Misses)
	metric("wallet_cache_entries", "gauge", "Wallet summaries cached", ws.Entries)
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", s.limiter.Hits())
	metric("rate_limit_active_clients", "gauge", "Clients tracked by the rate limiter", s.limiter.ActiveClients())
	metric("security_suspicious_requests_total", "counter", "Requests that looked like scans", s.detector.SuspiciousRequests())
	metric("process_uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.started).Seconds()))
}
