package http

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pisoheroes/internal/core"
)

const (
	sessionCookie = "piso_session"
	flashCookie   = "piso_flash"
	sessionTTL    = 7 * 24 * time.Hour
	csrfField     = "csrf_token"
	csrfHeader    = "X-CSRF-Token"
)

// Sessions signs and verifies the login cookie. The cookie holds the user id
// and expiry; nothing is stored server side.
type Sessions struct {
	secret []byte
	secure bool
	now    func() time.Time
}

// NewSessions uses secret to sign cookies. An empty secret gets a random one,
// which logs everybody out on restart.
func NewSessions(secret string, secure bool) *Sessions {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("generate session key: %v", err))
		}
		slog.Warn("SESSION_SECRET not set, using a random key; sessions end on restart")
	}
	return &Sessions{secret: key, secure: secure, now: time.Now}
}

func (s *Sessions) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue sets the session cookie for userID.
func (s *Sessions) Issue(w http.ResponseWriter, userID int64) {
	expires := s.now().Add(sessionTTL)
	payload := strconv.FormatInt(userID, 10) + "." + strconv.FormatInt(expires.Unix(), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    payload + "." + s.sign(payload),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserID returns the signed-in user of r and the raw cookie value.
func (s *Sessions) UserID(r *http.Request) (int64, string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return 0, "", false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 3 {
		return 0, "", false
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.sign(payload))) {
		return 0, "", false
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || s.now().Unix() > expires {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, c.Value, true
}

// CSRFToken is bound to the session cookie value.
func (s *Sessions) CSRFToken(session string) string {
	return s.sign("csrf:" + session)
}

// ValidCSRF checks the token sent with a state-changing request.
func (s *Sessions) ValidCSRF(r *http.Request, session string) bool {
	token := r.Header.Get(csrfHeader)
	if token == "" {
		token = r.PostFormValue(csrfField)
	}
	return token != "" && hmac.Equal([]byte(token), []byte(s.CSRFToken(session)))
}

type userKey struct{}

type sessionInfo struct {
	User core.User
	CSRF string
}

func withSession(ctx context.Context, info sessionInfo) context.Context {
	return context.WithValue(ctx, userKey{}, info)
}

func sessionFrom(ctx context.Context) (sessionInfo, bool) {
	info, ok := ctx.Value(userKey{}).(sessionInfo)
	return info, ok
}

// currentUser is only valid behind requireUser.
func currentUser(r *http.Request) core.User {
	info, _ := sessionFrom(r.Context())
	return info.User
}

// FlashKind selects the flash banner style.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Kind    FlashKind
	Message string
}

func setFlash(w http.ResponseWriter, f Flash) {
	raw := string(f.Kind) + "|" + f.Message
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(raw)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash cookie.
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(string(raw), "|")
	if !ok || msg == "" {
		return nil
	}
	switch FlashKind(kind) {
	case FlashSuccess, FlashWarning, FlashError:
		return &Flash{Kind: FlashKind(kind), Message: msg}
	}
	return nil
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	u, err := url.Parse(next)
	if err != nil || next == "" || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return u.RequestURI()
}

// backTo is the form's "back" field, or def when the form has none.
func backTo(r *http.Request, def string) string {
	if r.PostFormValue("back") == "" {
		return def
	}
	return safeNext(r.PostFormValue("back"))
}
