package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pisoheroes/internal/backend"
	"pisoheroes/internal/config"
	"pisoheroes/internal/core"
)

const testPassword = "s3cret-pass"

func newTestServer(t *testing.T) (*Server, *backend.App) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Timezone:           "Asia/Manila",
		DataBackend:        "memory",
		SQLiteDBPath:       filepath.Join(dir, "remote.db"),
		NotifyDBPath:       filepath.Join(dir, "notify.db"),
		EmailBackend:       "log",
		EmailFrom:          "noreply@pisoheroes.app",
		SessionSecret:      "test-secret",
		RateLimitPerMinute: 1000,
	}
	app, err := backend.Open(context.Background(), cfg, backend.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	s := NewServer(":0", app)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	require.NotNil(t, s.pages, "templates should parse")
	return s, app
}

type testClient struct {
	t      *testing.T
	s      *Server
	user   core.User
	cookie *http.Cookie
	csrf   string
}

// login creates a user and signs in through the login form.
func login(t *testing.T, s *Server, app *backend.App, username, email string) *testClient {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := app.Store.Users.Create(context.Background(), core.User{Username: username, Email: email, PasswordHash: string(hash)})
	require.NoError(t, err)

	form := url.Values{"username": {username}, "password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	c := &testClient{t: t, s: s, user: u}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	require.NotNil(t, c.cookie, "login should set the session cookie")
	c.csrf = s.sessions.CSRFToken(c.cookie.Value)
	return c
}

func (c *testClient) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(c.cookie)
	rec := httptest.NewRecorder()
	c.s.Handler.ServeHTTP(rec, req)
	return rec
}

func (c *testClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(csrfField, c.csrf)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(c.cookie)
	rec := httptest.NewRecorder()
	c.s.Handler.ServeHTTP(rec, req)
	return rec
}

func (c *testClient) api(method, path string) map[string]any {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeader, c.csrf)
	req.AddCookie(c.cookie)
	rec := httptest.NewRecorder()
	c.s.Handler.ServeHTTP(rec, req)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(c.t, true, body["success"])
	return body
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestReadyz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "ok", body.Checks["stores"])
	assert.Equal(t, "not_configured", body.Checks["push"])
	assert.Equal(t, "log", body.Checks["email"])
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	s.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# TYPE http_requests_total counter")
	assert.Contains(t, rec.Body.String(), "wallet_cache_entries")
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestStaticAssets(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/notifications/unread-count")
}

func TestUnauthenticated(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expenses", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fexpenses", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/unread-count", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s, app := newTestServer(t)
	login(t, s, app, "ana", "ana@example.com")

	form := url.Values{"username": {"ana"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong username or password")
}

func TestLogout(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	rec := c.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestCSRFRequired(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	form := url.Values{"amount": {"100"}, "category": {"Food"}}
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(c.cookie)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPagesRender(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	for path, want := range map[string]string{
		"/":                          "Budget vs actual",
		"/expenses":                  "Download CSV",
		"/income":                    "Extra income",
		"/alerts":                    "Budget alerts",
		"/goals":                     "Savings goals",
		"/settings":                  "Monthly allowance",
		"/notifications":             "Nothing here yet.",
		"/notifications/preferences": "Notification preferences",
		"/reminders":                 "Nothing coming up.",
		"/analytics":                 "Budget adherence",
		"/audit":                     "Activity log",
	} {
		rec := c.get(path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want, path)
		assert.Contains(t, rec.Body.String(), c.csrf, path)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), path)
	}
}

func TestExpenseTriggersAlertOncePerDay(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	rec := c.post("/alerts", url.Values{
		"category":          {"food"},
		"amount_limit":      {"1,000"},
		"threshold_percent": {"80"},
		"notify_dashboard":  {"on"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/alerts", rec.Header().Get("Location"))

	rec = c.post("/expenses", url.Values{"amount": {"850"}, "category": {"Food"}, "notes": {"groceries"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/expenses", rec.Header().Get("Location"))

	body := c.api(http.MethodGet, "/api/notifications/unread-count")
	assert.Equal(t, float64(1), body["count"])

	rec = c.post("/expenses", url.Values{"amount": {"50"}, "category": {"Food"}, "back": {"/"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	body = c.api(http.MethodGet, "/api/notifications/unread-count")
	assert.Equal(t, float64(1), body["count"], "same alert fires once per day")

	recent := c.api(http.MethodGet, "/api/notifications/recent?limit=5")
	items := recent["notifications"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, true, first["unread"])
	assert.Equal(t, "budget_alert", first["category"])

	id := int64(first["id"].(float64))
	c.api(http.MethodPost, "/api/notifications/"+strconv.FormatInt(id, 10)+"/read")
	body = c.api(http.MethodGet, "/api/notifications/unread-count")
	assert.Equal(t, float64(0), body["count"])

	body = c.api(http.MethodPost, "/api/notifications/read-all")
	assert.Equal(t, float64(0), body["marked"])

	rec = c.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "₱900.00")
}

func TestDuplicateAlertConflict(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	form := url.Values{"category": {"Transport"}, "amount_limit": {"500"}, "threshold_percent": {"90"}}
	require.Equal(t, http.StatusSeeOther, c.post("/alerts", form).Code)

	rec := c.post("/alerts", url.Values{"category": {"transport"}, "amount_limit": {"800"}, "threshold_percent": {"50"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "An active alert already exists for this category")
}

func TestInvalidFormsRerender(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	rec := c.post("/expenses", url.Values{"amount": {"abc"}, "category": {"Food"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "flash-error")

	rec = c.post("/alerts", url.Values{"category": {"Food"}, "amount_limit": {"100"}, "threshold_percent": {"5"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.post("/goals", url.Values{"name": {""}, "target_amount": {"100"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.get("/goals/9999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletJSON(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	require.Equal(t, http.StatusSeeOther, c.post("/settings", url.Values{"monthly_allowance": {"3,100"}}).Code)

	body := c.api(http.MethodGet, "/wallet")
	w := body["wallet"].(map[string]any)
	assert.Equal(t, "3100.00", w["monthly_allowance"])
	assert.Equal(t, s.today().String(), w["date"])

	rec := c.get("/wallet?date=not-a-date")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWalletCacheInvalidatedOnExpense(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	before := c.api(http.MethodGet, "/wallet")["wallet"].(map[string]any)
	assert.Equal(t, "0.00", before["today_expenses"])

	require.Equal(t, http.StatusSeeOther, c.post("/expenses", url.Values{"amount": {"42"}, "category": {"Food"}}).Code)

	after := c.api(http.MethodGet, "/wallet")["wallet"].(map[string]any)
	assert.Equal(t, "42.00", after["today_expenses"])
}

func TestGoalLifecycle(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")
	ctx := context.Background()

	rec := c.post("/goals", url.Values{"name": {"New phone"}, "target_amount": {"1000"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	goals, err := app.Goals.ListGoals(ctx, c.user.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	path := goalURL(goals[0].ID)
	assert.Equal(t, path, rec.Header().Get("Location"))

	rec = c.post(path+"/contribute", url.Values{"amount": {"600"}, "notes": {"first"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = c.get(path)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "₱600.00")

	rec = c.post(path+"/reset", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	g, err := app.Goals.GetGoal(ctx, c.user.ID, goals[0].ID)
	require.NoError(t, err)
	assert.Zero(t, g.Current.Cents)

	rec = c.post(path+"/reset", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.post(path+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, err = app.Goals.GetGoal(ctx, c.user.ID, goals[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExportCSV(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")
	require.Equal(t, http.StatusSeeOther, c.post("/expenses", url.Values{"amount": {"12.50"}, "category": {"Transport"}, "notes": {"jeep"}}).Code)

	rec := c.get("/export/expenses.csv")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Category,Amount,Notes", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",Transport,12.50,jeep"))

	rec = c.get("/export/expenses.csv?from=2025-03-10&to=2025-03-01")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPreferencesAndTestEmail(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	rec := c.post("/notifications/preferences", url.Values{"email_enabled": {"on"}, "email_budget_alerts": {"on"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	prefs, err := app.Notifications.Preferences(context.Background(), c.user.ID)
	require.NoError(t, err)
	assert.True(t, prefs.EmailEnabled)
	assert.True(t, prefs.EmailBudgetAlerts)
	assert.False(t, prefs.PushEnabled)

	body := c.api(http.MethodPost, "/api/notifications/test-email")
	assert.Equal(t, "Test email sent to ana@example.com", body["message"])
}

func TestTestEmailWithoutAddress(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ben", "")

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/test-email", nil)
	req.Header.Set(csrfHeader, c.csrf)
	req.AddCookie(c.cookie)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUsersAreIsolated(t *testing.T) {
	s, app := newTestServer(t)
	ana := login(t, s, app, "ana", "ana@example.com")
	ben := login(t, s, app, "ben", "ben@example.com")

	require.Equal(t, http.StatusSeeOther, ana.post("/goals", url.Values{"name": {"Bike"}, "target_amount": {"5000"}}).Code)
	goals, err := app.Goals.ListGoals(context.Background(), ana.user.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)

	rec := ben.get(goalURL(goals[0].ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReminderLifecycle(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")

	rec := c.post("/reminders", url.Values{"title": {"Pay rent"}, "frequency": {"once"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "due")

	due := time.Now().In(app.Location).AddDate(0, 1, 0).Truncate(time.Minute)
	rec = c.post("/reminders", url.Values{
		"title":                 {"Pay rent"},
		"due_at":                {due.Format(dueLayout)},
		"frequency":             {"monthly"},
		"pre_alert_offset_days": {"3"},
		"notify_in_app":         {"on"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	list, err := app.Store.Reminders.List(context.Background(), c.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	m := list[0]
	require.NotNil(t, m.DueAt)
	assert.True(t, m.DueAt.Equal(due), "due times are read in the app timezone")
	assert.Equal(t, 3, m.PreAlertOffsetDays)

	page := c.get("/reminders").Body.String()
	assert.Contains(t, page, "Pay rent")
	assert.Contains(t, page, `value="`+due.Format(dueLayout)+`"`)

	id := strconv.FormatInt(m.ID, 10)
	require.Equal(t, http.StatusSeeOther, c.post("/reminders/"+id+"/edit", url.Values{"title": {"Pay rent (Feb)"}, "frequency": {"monthly"}}).Code)
	require.Equal(t, http.StatusSeeOther, c.post("/reminders/"+id+"/complete", nil).Code)
	m, err = app.Reminders.GetReminder(context.Background(), c.user.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pay rent (Feb)", m.Title)
	assert.True(t, m.Completed)
	assert.Nil(t, m.DueAt)

	other := login(t, s, app, "ben", "ben@example.com")
	assert.Equal(t, http.StatusNotFound, other.post("/reminders/"+id+"/delete", nil).Code)
	assert.Equal(t, http.StatusSeeOther, c.post("/reminders/"+id+"/delete", nil).Code)
}

func TestAnalyticsAPI(t *testing.T) {
	s, app := newTestServer(t)
	c := login(t, s, app, "ana", "ana@example.com")
	require.Equal(t, http.StatusSeeOther, c.post("/expenses", url.Values{"amount": {"120.50"}, "category": {"Food"}}).Code)
	require.Equal(t, http.StatusSeeOther, c.post("/expenses", url.Values{"amount": {"30"}, "category": {"Transport"}}).Code)

	body := c.api(http.MethodGet, "/api/analytics/category-breakdown")
	cats := body["data"].([]any)
	require.Len(t, cats, 2)
	first := cats[0].(map[string]any)
	assert.Equal(t, "Food", first["category"])
	assert.Equal(t, 120.5, first["amount"])
	assert.Equal(t, 80.1, first["percentage"])

	rng := app.Analytics.DefaultRange()
	days := c.api(http.MethodGet, "/api/analytics/daily-spending")["data"].([]any)
	assert.Len(t, days, rng.To.DaysSince(rng.From)+1)

	assert.Len(t, c.api(http.MethodGet, "/api/analytics/hourly-patterns")["data"].([]any), 24)
	assert.Len(t, c.api(http.MethodGet, "/api/analytics/monthly-trends")["data"].([]any), 6)
	assert.Len(t, c.api(http.MethodGet, "/api/analytics/weekly-comparison")["data"].([]any), 1)

	for _, q := range []string{"from=yesterday", "from=2025-03-10&to=2025-03-01", "from=2020-01-01&to=2025-01-01"} {
		rec := c.get("/api/analytics/daily-spending?" + q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, rec.Body.String(), `"success":false`, q)
	}

	rec := c.get("/analytics/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "pisoheroes_user_report_"+rng.From.String()+"_to_"+rng.To.String()+".csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "RAW TRANSACTIONS\n"))
	assert.Contains(t, rec.Body.String(), "Food,120.50,80.1")
}

func TestAuditTrail(t *testing.T) {
	s, app := newTestServer(t)
	ctx := context.Background()
	c := login(t, s, app, "ana", "ana@example.com")

	require.Equal(t, http.StatusSeeOther, c.post("/expenses", url.Values{"amount": {"50"}, "category": {"Food"}}).Code)

	form := url.Values{"amount": {"100"}, "category": {"Food"}}
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "audit-test/1.0")
	req.AddCookie(c.cookie)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	bad := url.Values{"username": {"ana"}, "password": {"nope"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(bad.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.Handler.ServeHTTP(httptest.NewRecorder(), req)

	counts, err := app.Logs.CountAuditByAction(ctx, core.AuditFilter{UserID: c.user.ID})
	require.NoError(t, err)
	assert.Equal(t, map[core.AuditAction]int64{
		core.AuditLogin:        1,
		core.AuditCreate:       1,
		core.AuditAccessDenied: 1,
		core.AuditLoginFailed:  1,
	}, counts)

	denied, err := app.Logs.ListAudit(ctx, core.AuditFilter{UserID: c.user.ID, Action: core.AuditAccessDenied})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, "/expenses", denied[0].ResourceID)
	assert.Equal(t, "audit-test/1.0", denied[0].UserAgent)

	page := c.get("/audit?action_type=LOGIN_FAILED").Body.String()
	assert.Contains(t, page, "LOGIN_FAILED")
	assert.Contains(t, page, "1 matching events")

	rec = c.get("/audit/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "Timestamp,User ID,Action Type,Resource Type,Resource ID,IP Address,User Agent,Metadata", lines[0])
	assert.Len(t, lines, 5)

	require.Equal(t, http.StatusSeeOther, c.post("/logout", nil).Code)
	out, err := app.Logs.ListAudit(ctx, core.AuditFilter{UserID: c.user.ID, Action: core.AuditLogout})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	other := login(t, s, app, "ben", "ben@example.com")
	assert.Contains(t, other.get("/audit?action_type=LOGIN_FAILED").Body.String(), "0 matching events")
}
