package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// NotificationLog mirrors a notification_logs row.
type NotificationLog struct {
	ID           int64
	UserID       int64
	Title        string
	Message      string
	Category     string
	Subject      string
	Channel      string
	Status       string
	ErrorMessage string
	CreatedAt    string
	SentAt       sql.NullString
	ReadAt       sql.NullString
}

const notificationColumns = `id, user_id, title, message, category, subject, channel, status, error_message, created_at, sent_at, read_at`

func scanNotificationLog(row interface{ Scan(...interface{}) error }) (NotificationLog, error) {
	var i NotificationLog
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Title,
		&i.Message,
		&i.Category,
		&i.Subject,
		&i.Channel,
		&i.Status,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.SentAt,
		&i.ReadAt,
	)
	return i, err
}

const createNotificationLog = `-- name: CreateNotificationLog :one
INSERT INTO notification_logs (user_id, title, message, category, subject, channel, status, error_message, created_at, sent_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + notificationColumns

type CreateNotificationLogParams struct {
	UserID       int64
	Title        string
	Message      string
	Category     string
	Subject      string
	Channel      string
	Status       string
	ErrorMessage string
	CreatedAt    string
	SentAt       sql.NullString
}

func (q *Queries) CreateNotificationLog(ctx context.Context, arg CreateNotificationLogParams) (NotificationLog, error) {
	row := q.db.QueryRowContext(ctx, createNotificationLog,
		arg.UserID,
		arg.Title,
		arg.Message,
		arg.Category,
		arg.Subject,
		arg.Channel,
		arg.Status,
		arg.ErrorMessage,
		arg.CreatedAt,
		arg.SentAt,
	)
	return scanNotificationLog(row)
}

const updateNotificationStatus = `-- name: UpdateNotificationStatus :execrows
UPDATE notification_logs SET status = ?, error_message = ?, sent_at = ? WHERE id = ?`

type UpdateNotificationStatusParams struct {
	Status       string
	ErrorMessage string
	SentAt       sql.NullString
	ID           int64
}

func (q *Queries) UpdateNotificationStatus(ctx context.Context, arg UpdateNotificationStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateNotificationStatus, arg.Status, arg.ErrorMessage, arg.SentAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getNotificationLog = `-- name: GetNotificationLog :one
SELECT ` + notificationColumns + ` FROM notification_logs WHERE id = ?`

func (q *Queries) GetNotificationLog(ctx context.Context, id int64) (NotificationLog, error) {
	row := q.db.QueryRowContext(ctx, getNotificationLog, id)
	return scanNotificationLog(row)
}

const countNotificationsSince = `-- name: CountNotificationsSince :one
SELECT COUNT(*) FROM notification_logs
WHERE user_id = ? AND category = ? AND subject = ? AND created_at >= ?`

type CountNotificationsSinceParams struct {
	UserID   int64
	Category string
	Subject  string
	Since    string
}

func (q *Queries) CountNotificationsSince(ctx context.Context, arg CountNotificationsSinceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countNotificationsSince, arg.UserID, arg.Category, arg.Subject, arg.Since)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listChannelNotifications = `-- name: ListChannelNotifications :many
SELECT ` + notificationColumns + ` FROM notification_logs
WHERE user_id = ? AND channel = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`

type ListChannelNotificationsParams struct {
	UserID  int64
	Channel string
	Limit   int64
}

func (q *Queries) ListChannelNotifications(ctx context.Context, arg ListChannelNotificationsParams) ([]NotificationLog, error) {
	rows, err := q.db.QueryContext(ctx, listChannelNotifications, arg.UserID, arg.Channel, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectNotificationLogs(rows)
}

const listNotifications = `-- name: ListNotifications :many
SELECT ` + notificationColumns + ` FROM notification_logs
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

type ListNotificationsParams struct {
	UserID int64
	Limit  int64
	Offset int64
}

func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]NotificationLog, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectNotificationLogs(rows)
}

const listNotificationsByStatus = `-- name: ListNotificationsByStatus :many
SELECT ` + notificationColumns + ` FROM notification_logs
WHERE channel = ? AND status = ? AND created_at < ?
ORDER BY created_at ASC
LIMIT ?`

type ListNotificationsByStatusParams struct {
	Channel string
	Status  string
	Before  string
	Limit   int64
}

func (q *Queries) ListNotificationsByStatus(ctx context.Context, arg ListNotificationsByStatusParams) ([]NotificationLog, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationsByStatus, arg.Channel, arg.Status, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectNotificationLogs(rows)
}

func collectNotificationLogs(rows *sql.Rows) ([]NotificationLog, error) {
	defer rows.Close()
	var items []NotificationLog
	for rows.Next() {
		i, err := scanNotificationLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUnreadNotifications = `-- name: CountUnreadNotifications :one
SELECT COUNT(*) FROM notification_logs
WHERE user_id = ? AND channel = 'dashboard' AND read_at IS NULL`

func (q *Queries) CountUnreadNotifications(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUnreadNotifications, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const markNotificationRead = `-- name: MarkNotificationRead :execrows
UPDATE notification_logs SET read_at = ?, status = 'read'
WHERE id = ? AND user_id = ? AND read_at IS NULL`

func (q *Queries) MarkNotificationRead(ctx context.Context, readAt string, id, userID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markNotificationRead, readAt, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markAllNotificationsRead = `-- name: MarkAllNotificationsRead :execrows
UPDATE notification_logs SET read_at = ?, status = 'read'
WHERE user_id = ? AND channel = 'dashboard' AND read_at IS NULL`

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, readAt string, userID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markAllNotificationsRead, readAt, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// NotificationPreference mirrors a notification_preferences row.
type NotificationPreference struct {
	UserID              int64
	EmailEnabled        bool
	EmailBudgetAlerts   bool
	EmailGoalMilestones bool
	PushEnabled         bool
	PushToken           string
	UpdatedAt           string
}

const getNotificationPreference = `-- name: GetNotificationPreference :one
SELECT user_id, email_enabled, email_budget_alerts, email_goal_milestones, push_enabled, push_token, updated_at
FROM notification_preferences WHERE user_id = ?`

func (q *Queries) GetNotificationPreference(ctx context.Context, userID int64) (NotificationPreference, error) {
	row := q.db.QueryRowContext(ctx, getNotificationPreference, userID)
	var i NotificationPreference
	err := row.Scan(
		&i.UserID,
		&i.EmailEnabled,
		&i.EmailBudgetAlerts,
		&i.EmailGoalMilestones,
		&i.PushEnabled,
		&i.PushToken,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertNotificationPreference = `-- name: UpsertNotificationPreference :exec
INSERT INTO notification_preferences (user_id, email_enabled, email_budget_alerts, email_goal_milestones, push_enabled, push_token, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    email_enabled = excluded.email_enabled,
    email_budget_alerts = excluded.email_budget_alerts,
    email_goal_milestones = excluded.email_goal_milestones,
    push_enabled = excluded.push_enabled,
    push_token = excluded.push_token,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertNotificationPreference(ctx context.Context, arg NotificationPreference) error {
	_, err := q.db.ExecContext(ctx, upsertNotificationPreference,
		arg.UserID,
		arg.EmailEnabled,
		arg.EmailBudgetAlerts,
		arg.EmailGoalMilestones,
		arg.PushEnabled,
		arg.PushToken,
		arg.UpdatedAt,
	)
	return err
}

const insertGoalAlert = `-- name: InsertGoalAlert :execrows
INSERT INTO goal_alerts (goal_id, user_id, alert_type, triggered_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (goal_id, alert_type) DO NOTHING`

type InsertGoalAlertParams struct {
	GoalID      int64
	UserID      int64
	AlertType   string
	TriggeredAt string
}

func (q *Queries) InsertGoalAlert(ctx context.Context, arg InsertGoalAlertParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertGoalAlert, arg.GoalID, arg.UserID, arg.AlertType, arg.TriggeredAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteGoalAlerts = `-- name: DeleteGoalAlerts :exec
DELETE FROM goal_alerts WHERE goal_id = ?`

func (q *Queries) DeleteGoalAlerts(ctx context.Context, goalID int64) error {
	_, err := q.db.ExecContext(ctx, deleteGoalAlerts, goalID)
	return err
}

// AuditLog mirrors an audit_logs row.
type AuditLog struct {
	ID           int64
	Timestamp    string
	UserID       sql.NullInt64
	ActionType   string
	ResourceType string
	ResourceID   string
	Metadata     string
	IPAddress    string
	UserAgent    string
}

const auditColumns = `id, timestamp, user_id, action_type, resource_type, resource_id, metadata, ip_address, user_agent`

func scanAuditLog(row interface{ Scan(...interface{}) error }) (AuditLog, error) {
	var i AuditLog
	err := row.Scan(
		&i.ID,
		&i.Timestamp,
		&i.UserID,
		&i.ActionType,
		&i.ResourceType,
		&i.ResourceID,
		&i.Metadata,
		&i.IPAddress,
		&i.UserAgent,
	)
	return i, err
}

const createAuditLog = `-- name: CreateAuditLog :one
INSERT INTO audit_logs (timestamp, user_id, action_type, resource_type, resource_id, metadata, ip_address, user_agent)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + auditColumns

func (q *Queries) CreateAuditLog(ctx context.Context, arg AuditLog) (AuditLog, error) {
	row := q.db.QueryRowContext(ctx, createAuditLog,
		arg.Timestamp,
		arg.UserID,
		arg.ActionType,
		arg.ResourceType,
		arg.ResourceID,
		arg.Metadata,
		arg.IPAddress,
		arg.UserAgent,
	)
	return scanAuditLog(row)
}

// auditWhere treats zero parameters as "any".
const auditWhere = `
WHERE (?1 = 0 OR user_id = ?1)
  AND (?2 = '' OR action_type = ?2)
  AND (?3 = '' OR resource_type = ?3)
  AND timestamp >= ?4
  AND (?5 = '' OR resource_id LIKE ?5 ESCAPE '\' OR metadata LIKE ?5 ESCAPE '\')`

type AuditFilterParams struct {
	UserID       int64
	ActionType   string
	ResourceType string
	Since        string
	Pattern      string
}

func (p AuditFilterParams) args() []interface{} {
	return []interface{}{p.UserID, p.ActionType, p.ResourceType, p.Since, p.Pattern}
}

const listAuditLogs = `-- name: ListAuditLogs :many
SELECT ` + auditColumns + ` FROM audit_logs` + auditWhere + `
ORDER BY timestamp DESC, id DESC
LIMIT ?6`

func (q *Queries) ListAuditLogs(ctx context.Context, arg AuditFilterParams, limit int64) ([]AuditLog, error) {
	rows, err := q.db.QueryContext(ctx, listAuditLogs, append(arg.args(), limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLog
	for rows.Next() {
		i, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countAuditLogsByAction = `-- name: CountAuditLogsByAction :many
SELECT action_type, COUNT(*) FROM audit_logs` + auditWhere + `
GROUP BY action_type`

type CountAuditLogsByActionRow struct {
	ActionType string
	Count      int64
}

func (q *Queries) CountAuditLogsByAction(ctx context.Context, arg AuditFilterParams) ([]CountAuditLogsByActionRow, error) {
	rows, err := q.db.QueryContext(ctx, countAuditLogsByAction, arg.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountAuditLogsByActionRow
	for rows.Next() {
		var i CountAuditLogsByActionRow
		if err := rows.Scan(&i.ActionType, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
