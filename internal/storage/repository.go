// Package storage is the local SQLite datastore for notification delivery
// records, notification preferences, goal alert markers and the audit log.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pisoheroes/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width UTC so created_at compares correctly as text.
const timeLayout = "2006-01-02 15:04:05.000000"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func toCoreLog(n NotificationLog) core.NotificationLog {
	return core.NotificationLog{
		ID:           n.ID,
		UserID:       n.UserID,
		Title:        n.Title,
		Message:      n.Message,
		Category:     core.NotificationCategory(n.Category),
		Subject:      n.Subject,
		Channel:      core.Channel(n.Channel),
		Status:       core.NotificationStatus(n.Status),
		ErrorMessage: n.ErrorMessage,
		CreatedAt:    parseTime(n.CreatedAt),
		SentAt:       parseNullTime(n.SentAt),
		ReadAt:       parseNullTime(n.ReadAt),
	}
}

func toCoreLogs(rows []NotificationLog) []core.NotificationLog {
	out := make([]core.NotificationLog, 0, len(rows))
	for _, n := range rows {
		out = append(out, toCoreLog(n))
	}
	return out
}

// CreateLog appends a delivery record. A zero CreatedAt is stamped with now.
func (r *SQLiteRepository) CreateLog(ctx context.Context, n core.NotificationLog) (core.NotificationLog, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = core.StatusPending
	}
	row, err := r.queries.CreateNotificationLog(ctx, CreateNotificationLogParams{
		UserID:       n.UserID,
		Title:        n.Title,
		Message:      n.Message,
		Category:     string(n.Category),
		Subject:      n.Subject,
		Channel:      string(n.Channel),
		Status:       string(n.Status),
		ErrorMessage: n.ErrorMessage,
		CreatedAt:    formatTime(n.CreatedAt),
		SentAt:       nullTime(n.SentAt),
	})
	if err != nil {
		return core.NotificationLog{}, fmt.Errorf("create notification log: %w", err)
	}

	slog.DebugContext(ctx, "Notification log saved",
		"id", row.ID,
		"user_id", row.UserID,
		"category", row.Category,
		"channel", row.Channel,
		"status", row.Status)

	return toCoreLog(row), nil
}

// UpdateStatus records the outcome of a delivery attempt.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id int64, status core.NotificationStatus, errMsg string, sentAt *time.Time) error {
	n, err := r.queries.UpdateNotificationStatus(ctx, UpdateNotificationStatusParams{
		Status:       string(status),
		ErrorMessage: errMsg,
		SentAt:       nullTime(sentAt),
		ID:           id,
	})
	if err != nil {
		return fmt.Errorf("update notification %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update notification %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetLog(ctx context.Context, id int64) (core.NotificationLog, error) {
	row, err := r.queries.GetNotificationLog(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotificationLog{}, core.ErrNotFound
	}
	if err != nil {
		return core.NotificationLog{}, fmt.Errorf("get notification %d: %w", id, err)
	}
	return toCoreLog(row), nil
}

// HasLogSince reports whether any record for user, category and subject was
// created at or after since, on any channel.
func (r *SQLiteRepository) HasLogSince(ctx context.Context, userID int64, category core.NotificationCategory, subject string, since time.Time) (bool, error) {
	count, err := r.queries.CountNotificationsSince(ctx, CountNotificationsSinceParams{
		UserID:   userID,
		Category: string(category),
		Subject:  subject,
		Since:    formatTime(since),
	})
	if err != nil {
		return false, fmt.Errorf("count notifications: %w", err)
	}
	return count > 0, nil
}

// Recent returns the newest dashboard notifications for the bell.
func (r *SQLiteRepository) Recent(ctx context.Context, userID int64, limit int) ([]core.NotificationLog, error) {
	rows, err := r.queries.ListChannelNotifications(ctx, ListChannelNotificationsParams{
		UserID:  userID,
		Channel: string(core.ChannelDashboard),
		Limit:   int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list recent notifications: %w", err)
	}
	return toCoreLogs(rows), nil
}

// History pages through every delivery record of a user, newest first.
func (r *SQLiteRepository) History(ctx context.Context, userID int64, limit, offset int) ([]core.NotificationLog, error) {
	rows, err := r.queries.ListNotifications(ctx, ListNotificationsParams{
		UserID: userID,
		Limit:  int64(limit),
		Offset: int64(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return toCoreLogs(rows), nil
}

// Stale returns records of a channel stuck in status since before cutoff.
func (r *SQLiteRepository) Stale(ctx context.Context, channel core.Channel, status core.NotificationStatus, cutoff time.Time, limit int) ([]core.NotificationLog, error) {
	rows, err := r.queries.ListNotificationsByStatus(ctx, ListNotificationsByStatusParams{
		Channel: string(channel),
		Status:  string(status),
		Before:  formatTime(cutoff),
		Limit:   int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list stale notifications: %w", err)
	}
	return toCoreLogs(rows), nil
}

func (r *SQLiteRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	n, err := r.queries.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read. It returns
// core.ErrNotFound when the row does not exist, belongs to someone else or
// was already read.
func (r *SQLiteRepository) MarkRead(ctx context.Context, userID, id int64, at time.Time) error {
	n, err := r.queries.MarkNotificationRead(ctx, formatTime(at), id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	n, err := r.queries.MarkAllNotificationsRead(ctx, formatTime(at), userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

// Preferences returns the saved preferences or the defaults.
func (r *SQLiteRepository) Preferences(ctx context.Context, userID int64) (core.NotificationPreference, error) {
	row, err := r.queries.GetNotificationPreference(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultPreferences(userID), nil
	}
	if err != nil {
		return core.NotificationPreference{}, fmt.Errorf("get preferences: %w", err)
	}
	return core.NotificationPreference{
		UserID:              row.UserID,
		EmailEnabled:        row.EmailEnabled,
		EmailBudgetAlerts:   row.EmailBudgetAlerts,
		EmailGoalMilestones: row.EmailGoalMilestones,
		PushEnabled:         row.PushEnabled,
		PushToken:           row.PushToken,
		UpdatedAt:           parseTime(row.UpdatedAt),
	}, nil
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, p core.NotificationPreference) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	err := r.queries.UpsertNotificationPreference(ctx, NotificationPreference{
		UserID:              p.UserID,
		EmailEnabled:        p.EmailEnabled,
		EmailBudgetAlerts:   p.EmailBudgetAlerts,
		EmailGoalMilestones: p.EmailGoalMilestones,
		PushEnabled:         p.PushEnabled,
		PushToken:           p.PushToken,
		UpdatedAt:           formatTime(p.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// MarkGoalAlert records that alertType fired for goal. It returns false when
// the marker already existed, so each goal alert is sent at most once.
func (r *SQLiteRepository) MarkGoalAlert(ctx context.Context, goalID, userID int64, alertType string, at time.Time) (bool, error) {
	n, err := r.queries.InsertGoalAlert(ctx, InsertGoalAlertParams{
		GoalID:      goalID,
		UserID:      userID,
		AlertType:   alertType,
		TriggeredAt: formatTime(at),
	})
	if err != nil {
		return false, fmt.Errorf("mark goal alert: %w", err)
	}
	return n > 0, nil
}

// ClearGoalAlerts forgets every marker of goal so alerts can fire again.
func (r *SQLiteRepository) ClearGoalAlerts(ctx context.Context, goalID int64) error {
	if err := r.queries.DeleteGoalAlerts(ctx, goalID); err != nil {
		return fmt.Errorf("clear goal alerts: %w", err)
	}
	return nil
}

// CreateAudit appends an audit entry. A zero Timestamp is stamped with now
// and a zero UserID is stored as NULL.
func (r *SQLiteRepository) CreateAudit(ctx context.Context, e core.AuditEntry) (core.AuditEntry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	row, err := r.queries.CreateAuditLog(ctx, AuditLog{
		Timestamp:    formatTime(e.Timestamp),
		UserID:       sql.NullInt64{Int64: e.UserID, Valid: e.UserID != 0},
		ActionType:   string(e.Action),
		ResourceType: string(e.Resource),
		ResourceID:   e.ResourceID,
		Metadata:     e.MetadataJSON(),
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
	})
	if err != nil {
		return core.AuditEntry{}, fmt.Errorf("create audit log: %w", err)
	}
	return toCoreAudit(row), nil
}

// ListAudit returns entries matching f, newest first.
func (r *SQLiteRepository) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.queries.ListAuditLogs(ctx, auditParams(f), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	out := make([]core.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCoreAudit(row))
	}
	return out, nil
}

// CountAuditByAction counts entries matching f per action. Limit is ignored.
func (r *SQLiteRepository) CountAuditByAction(ctx context.Context, f core.AuditFilter) (map[core.AuditAction]int64, error) {
	rows, err := r.queries.CountAuditLogsByAction(ctx, auditParams(f))
	if err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}
	out := make(map[core.AuditAction]int64, len(rows))
	for _, row := range rows {
		out[core.AuditAction(row.ActionType)] = row.Count
	}
	return out, nil
}

func auditParams(f core.AuditFilter) AuditFilterParams {
	p := AuditFilterParams{
		UserID:       f.UserID,
		ActionType:   string(f.Action),
		ResourceType: string(f.Resource),
		Since:        formatTime(f.Since),
	}
	if f.Since.IsZero() {
		p.Since = ""
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p.Pattern = "%" + likeEscaper.Replace(s) + "%"
	}
	return p
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func toCoreAudit(a AuditLog) core.AuditEntry {
	e := core.AuditEntry{
		ID:         a.ID,
		Timestamp:  parseTime(a.Timestamp),
		UserID:     a.UserID.Int64,
		Action:     core.AuditAction(a.ActionType),
		Resource:   core.AuditResource(a.ResourceType),
		ResourceID: a.ResourceID,
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
	}
	if a.Metadata != "" && a.Metadata != "{}" {
		if err := json.Unmarshal([]byte(a.Metadata), &e.Metadata); err != nil {
			e.Metadata = map[string]any{"raw": a.Metadata}
		}
	}
	return e
}
