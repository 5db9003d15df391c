package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWindow(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2})
	defer l.Stop()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"), "clients are limited independently")
	assert.Equal(t, int64(1), l.Hits())

	now = now.Add(30 * time.Second)
	assert.Equal(t, 31, l.RetryAfter("1.2.3.4"))

	now = now.Add(31 * time.Second)
	assert.True(t, l.Allow("1.2.3.4"), "new window")
}

func TestCleanup(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	defer l.Stop()
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(3 * time.Minute)
	l.Allow("b")
	assert.Equal(t, 1, l.cleanup())
	assert.Equal(t, 1, l.ActiveClients())
}

func TestMiddlewareOnlyLimitsSelectedRequests(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1})
	defer l.Stop()
	onlyPost := func(r *http.Request) bool { return r.Method == http.MethodPost }
	h := l.Middleware(func(*http.Request) string { return "ip" }, onlyPost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
