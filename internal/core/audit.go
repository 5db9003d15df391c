package core

import (
	"encoding/json"
	"time"
)

type (
	AuditAction   string
	AuditResource string
)

const (
	AuditCreate         AuditAction = "CREATE"
	AuditRead           AuditAction = "READ"
	AuditUpdate         AuditAction = "UPDATE"
	AuditDelete         AuditAction = "DELETE"
	AuditLogin          AuditAction = "LOGIN"
	AuditLogout         AuditAction = "LOGOUT"
	AuditLoginFailed    AuditAction = "LOGIN_FAILED"
	AuditAccessDenied   AuditAction = "ACCESS_DENIED"
	AuditBudgetBreach   AuditAction = "BUDGET_BREACH"
	AuditAlertTriggered AuditAction = "ALERT_TRIGGERED"
)

// AuditActions lists every action in display order.
var AuditActions = []AuditAction{
	AuditCreate, AuditRead, AuditUpdate, AuditDelete,
	AuditLogin, AuditLogout, AuditLoginFailed, AuditAccessDenied,
	AuditBudgetBreach, AuditAlertTriggered,
}

const (
	ResourceExpense   AuditResource = "expense"
	ResourceIncome    AuditResource = "income"
	ResourceGoal      AuditResource = "goal"
	ResourceAlert     AuditResource = "alert"
	ResourceReminder  AuditResource = "reminder"
	ResourceUser      AuditResource = "user"
	ResourceAllowance AuditResource = "monthly_allowance"
	ResourceReport    AuditResource = "report"
	ResourceSystem    AuditResource = "system"
)

var AuditResources = []AuditResource{
	ResourceExpense, ResourceIncome, ResourceGoal, ResourceAlert, ResourceReminder,
	ResourceUser, ResourceAllowance, ResourceReport, ResourceSystem,
}

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	for _, known := range AuditActions {
		if a == known {
			return true
		}
	}
	return false
}

func (r AuditResource) Valid() bool {
	for _, known := range AuditResources {
		if r == known {
			return true
		}
	}
	return false
}

// AuditEntry is one security or data event. UserID is zero for events
// without an authenticated user, such as a failed login.
type AuditEntry struct {
	ID         int64
	Timestamp  time.Time
	UserID     int64
	Action     AuditAction
	Resource   AuditResource
	ResourceID string
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
}

// MetadataJSON encodes Metadata for storage and display. Nil encodes as {}.
func (e AuditEntry) MetadataJSON() string {
	if len(e.Metadata) == 0 {
		return "{}"
	}
	b, err := json.Marshal(e.Metadata)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// AuditFilter narrows an audit listing. Zero fields match everything.
type AuditFilter struct {
	UserID   int64
	Action   AuditAction
	Resource AuditResource
	Since    time.Time
	Search   string // substring of resource id or metadata
	Limit    int
}
