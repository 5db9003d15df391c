package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
	"pisoheroes/internal/notify"
)

type AlertFinder interface {
	ActiveForCategory(ctx context.Context, userID int64, category string) ([]core.BudgetAlert, error)
}

type SpendReader interface {
	CategorySpend(ctx context.Context, userID int64, category string, from, to core.Date) (core.Money, error)
}

type UserReader interface {
	Get(ctx context.Context, id int64) (core.User, error)
}

// LogIndex answers de-duplication lookups and holds channel preferences.
type LogIndex interface {
	HasLogSince(ctx context.Context, userID int64, category core.NotificationCategory, subject string, since time.Time) (bool, error)
	Preferences(ctx context.Context, userID int64) (core.NotificationPreference, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification, to notify.Recipient, ch notify.Channels) *notify.Result
}

// Outcome describes what happened to one alert during a check.
type Outcome struct {
	Alert      core.BudgetAlert
	Decision   Decision
	Suppressed bool
	Result     *notify.Result
}

// Checker runs the alert evaluation after an expense write.
type Checker struct {
	alerts   AlertFinder
	spend    SpendReader
	users    UserReader
	logs     LogIndex
	notifier Notifier
	audit    audit.Recorder
	now      func() time.Time
	loc      *time.Location
}

func NewChecker(alerts AlertFinder, spend SpendReader, users UserReader, logs LogIndex, notifier Notifier, loc *time.Location) *Checker {
	if loc == nil {
		loc = time.Local
	}
	return &Checker{
		alerts:   alerts,
		spend:    spend,
		users:    users,
		logs:     logs,
		notifier: notifier,
		audit:    audit.Discard,
		now:      time.Now,
		loc:      loc,
	}
}

// SetClock overrides time.Now.
func (c *Checker) SetClock(now func() time.Time) { c.now = now }

// SetAuditor records dispatched alerts and exceeded budgets.
func (c *Checker) SetAuditor(r audit.Recorder) { c.audit = audit.Or(r) }

// CheckExpense evaluates the active alerts matching the expense's category.
// Spend covers the expense's calendar month up to the expense date. A
// triggered alert is dispatched at most once per user, category and local
// calendar day.
func (c *Checker) CheckExpense(ctx context.Context, e core.Expense) ([]Outcome, error) {
	alerts, err := c.alerts.ActiveForCategory(ctx, e.UserID, e.Category)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	var outcomes []Outcome
	for _, a := range alerts {
		out, err := c.check(ctx, a, e.Date)
		if err != nil {
			return outcomes, err
		}
		if out.Decision.Triggered {
			outcomes = append(outcomes, out)
		}
	}
	return outcomes, nil
}

func (c *Checker) check(ctx context.Context, a core.BudgetAlert, date core.Date) (Outcome, error) {
	spend, err := c.spend.CategorySpend(ctx, a.UserID, a.Category, date.MonthStart(), date)
	if err != nil {
		return Outcome{}, fmt.Errorf("category spend: %w", err)
	}
	out := Outcome{Alert: a, Decision: Evaluate(a, spend)}
	if !out.Decision.Triggered {
		return out, nil
	}

	midnight := core.Today(c.now(), c.loc).StartIn(c.loc)
	seen, err := c.logs.HasLogSince(ctx, a.UserID, core.CategoryBudgetAlert, a.Category, midnight)
	if err != nil {
		return out, fmt.Errorf("check alert history: %w", err)
	}
	if seen {
		out.Suppressed = true
		slog.InfoContext(ctx, "Budget alert already sent today",
			"user_id", a.UserID,
			"category", a.Category,
			"percent", out.Decision.Percent)
		return out, nil
	}

	ch := notify.Channels{Dashboard: a.NotifyDashboard, Email: a.NotifyEmail, Push: a.NotifyPush}
	if !ch.Any() {
		return out, nil
	}

	to, err := c.recipient(ctx, a.UserID)
	if err != nil {
		return out, err
	}
	n := notify.Notification{
		Title:    Title(a, out.Decision),
		Message:  Message(a, out.Decision),
		Category: core.CategoryBudgetAlert,
		Subject:  a.Category,
	}
	out.Result = c.notifier.Dispatch(ctx, n, to, ch)

	slog.InfoContext(ctx, "Budget alert triggered",
		"user_id", a.UserID,
		"alert_id", a.ID,
		"category", a.Category,
		"percent", out.Decision.Percent,
		"severity", out.Decision.Severity,
		"delivered", out.Result.Delivered())
	c.recordTrigger(ctx, a, out.Decision, spend)
	return out, nil
}

func (c *Checker) recordTrigger(ctx context.Context, a core.BudgetAlert, d Decision, spend core.Money) {
	meta := map[string]any{
		"category":    a.Category,
		"percent":     d.Percent,
		"severity":    d.Severity,
		"spent_cents": spend.Cents,
		"limit_cents": a.Limit.Cents,
	}
	c.audit.Record(ctx, audit.Entry(a.UserID, core.AuditAlertTriggered, core.ResourceAlert, a.ID, meta))
	if d.Severity == core.SeverityExceeded {
		c.audit.Record(ctx, audit.Entry(a.UserID, core.AuditBudgetBreach, core.ResourceAlert, a.ID, meta))
	}
}

func (c *Checker) recipient(ctx context.Context, userID int64) (notify.Recipient, error) {
	to := notify.Recipient{UserID: userID}
	user, err := c.users.Get(ctx, userID)
	if err != nil {
		return to, fmt.Errorf("load user: %w", err)
	}
	to.Email = user.Email
	prefs, err := c.logs.Preferences(ctx, userID)
	if err != nil {
		return to, fmt.Errorf("load preferences: %w", err)
	}
	to.Prefs = prefs
	return to, nil
}
