package core

import "time"

type (
	Channel              string
	NotificationStatus   string
	NotificationCategory string
	Severity             string
)

const (
	ChannelDashboard Channel = "dashboard"
	ChannelEmail     Channel = "email"
	ChannelPush      Channel = "push"
)

// Channels lists every delivery channel in dispatch order.
var Channels = []Channel{ChannelDashboard, ChannelEmail, ChannelPush}

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
	StatusRead    NotificationStatus = "read"
)

const (
	CategoryBudgetAlert   NotificationCategory = "budget_alert"
	CategoryGoalMilestone NotificationCategory = "goal_milestone"
	CategoryGoalDeadline  NotificationCategory = "goal_deadline"
	CategorySystem        NotificationCategory = "system"
)

const (
	SeverityThreshold Severity = "threshold_reached"
	SeverityCritical  Severity = "critical"
	SeverityExceeded  Severity = "exceeded"
)

// CriticalPercent and ExceededPercent are the fixed severity boundaries above
// a user's own threshold.
const (
	CriticalPercent = 90.0
	ExceededPercent = 100.0
)

// NotificationLog is one delivery attempt on one channel. Rows are
// append-only apart from status and read state.
type NotificationLog struct {
	ID           int64
	UserID       int64
	Title        string
	Message      string
	Category     NotificationCategory
	Subject      string // budget category or goal id the notification is about
	Channel      Channel
	Status       NotificationStatus
	ErrorMessage string
	CreatedAt    time.Time
	SentAt       *time.Time
	ReadAt       *time.Time
}

// Unread reports whether the bell should still count this row.
func (n NotificationLog) Unread() bool {
	return n.ReadAt == nil && n.Status != StatusRead
}

// NotificationPreference holds a user's channel opt-ins.
type NotificationPreference struct {
	UserID              int64
	EmailEnabled        bool
	EmailBudgetAlerts   bool
	EmailGoalMilestones bool
	PushEnabled         bool
	PushToken           string
	UpdatedAt           time.Time
}

// DefaultPreferences is used for users who never saved preferences.
func DefaultPreferences(userID int64) NotificationPreference {
	return NotificationPreference{
		UserID:              userID,
		EmailEnabled:        true,
		EmailBudgetAlerts:   true,
		EmailGoalMilestones: true,
	}
}

// AllowsEmail reports whether email is wanted for category.
func (p NotificationPreference) AllowsEmail(c NotificationCategory) bool {
	if !p.EmailEnabled {
		return false
	}
	switch c {
	case CategoryBudgetAlert:
		return p.EmailBudgetAlerts
	case CategoryGoalMilestone, CategoryGoalDeadline:
		return p.EmailGoalMilestones
	}
	return true
}

// AllowsPush reports whether push delivery is possible for this user.
func (p NotificationPreference) AllowsPush() bool {
	return p.PushEnabled && p.PushToken != ""
}

// SeverityFor buckets a usage percentage that already reached the alert's
// threshold.
func SeverityFor(percent float64) Severity {
	switch {
	case percent >= ExceededPercent:
		return SeverityExceeded
	case percent >= CriticalPercent:
		return SeverityCritical
	default:
		return SeverityThreshold
	}
}

// Title is the headline shown in the bell and email subject.
func (s Severity) Title() string {
	switch s {
	case SeverityExceeded:
		return "Budget exceeded!"
	case SeverityCritical:
		return "Critical threshold reached!"
	default:
		return "Budget threshold reached"
	}
}

// Icon is the dashboard glyph for the severity.
func (s Severity) Icon() string {
	switch s {
	case SeverityExceeded:
		return "🚨"
	case SeverityCritical:
		return "⚠️"
	default:
		return "🔔"
	}
}

// Tone is the CSS tone class for the severity.
func (s Severity) Tone() string {
	switch s {
	case SeverityExceeded:
		return "danger"
	case SeverityCritical:
		return "warning"
	default:
		return "info"
	}
}

// CategoryIcon is the bell icon for notifications of category c.
func CategoryIcon(c NotificationCategory) string {
	switch c {
	case CategoryBudgetAlert:
		return "💰"
	case CategoryGoalMilestone:
		return "🎯"
	case CategoryGoalDeadline:
		return "⏰"
	default:
		return "🔔"
	}
}
