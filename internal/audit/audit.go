// Package audit records security and data events to the local store.
// Recording never fails the operation being audited.
package audit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"pisoheroes/internal/core"
)

// Store persists audit entries.
type Store interface {
	CreateAudit(ctx context.Context, e core.AuditEntry) (core.AuditEntry, error)
}

// Recorder is what services and handlers depend on.
type Recorder interface {
	Record(ctx context.Context, e core.AuditEntry)
}

// Discard drops every entry.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, core.AuditEntry) {}

// Client identifies the remote end of a request.
type Client struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

// WithClient attaches the caller's address and user agent to ctx.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

// Logger writes entries to a Store, stamping time and client details.
type Logger struct {
	store Store
	now   func() time.Time
}

func NewLogger(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// SetClock replaces the time source.
func (l *Logger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Logger) Record(ctx context.Context, e core.AuditEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	client := ClientFrom(ctx)
	if e.IPAddress == "" {
		e.IPAddress = client.IP
	}
	if e.UserAgent == "" {
		e.UserAgent = truncate(client.UserAgent, 500)
	}
	if _, err := l.store.CreateAudit(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to write audit log",
			"action", e.Action,
			"resource", e.Resource,
			"user_id", e.UserID,
			"error", err)
	}
}

// Or returns r, or Discard when r is nil.
func Or(r Recorder) Recorder {
	if r == nil {
		return Discard
	}
	return r
}

// Entry builds an entry for a user acting on one resource.
func Entry(userID int64, action core.AuditAction, resource core.AuditResource, resourceID any, metadata map[string]any) core.AuditEntry {
	e := core.AuditEntry{
		UserID:   userID,
		Action:   action,
		Resource: resource,
		Metadata: metadata,
	}
	switch id := resourceID.(type) {
	case nil:
	case string:
		e.ResourceID = id
	case int64:
		if id != 0 {
			e.ResourceID = strconv.FormatInt(id, 10)
		}
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
