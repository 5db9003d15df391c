package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/notify"
)

// Milestone is a progress mark announced once per goal.
type Milestone struct {
	Percent   int
	AlertType string
	Prefix    string
}

var Milestones = []Milestone{
	{25, "milestone_25", "25% of your savings goal reached! 🎉"},
	{50, "milestone_50", "Halfway there! You've saved 50%! 💪"},
	{75, "milestone_75", "Amazing! You're 75% of the way! 🚀"},
	{100, "milestone_100", "Goal Achieved! Congratulations! 🎊"},
}

// GoalAlertStore remembers which goal alerts already fired.
type GoalAlertStore interface {
	MarkGoalAlert(ctx context.Context, goalID, userID int64, alertType string, at time.Time) (bool, error)
	ClearGoalAlerts(ctx context.Context, goalID int64) error
	Preferences(ctx context.Context, userID int64) (core.NotificationPreference, error)
}

type UserReader interface {
	Get(ctx context.Context, id int64) (core.User, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification, to notify.Recipient, ch notify.Channels) *notify.Result
}

// GoalAlerter sends milestone and deadline notifications for savings goals.
// Each (goal, alert type) pair is sent at most once until the goal is reset.
type GoalAlerter struct {
	markers  GoalAlertStore
	users    UserReader
	notifier Notifier
	now      func() time.Time
}

func NewGoalAlerter(markers GoalAlertStore, users UserReader, notifier Notifier) *GoalAlerter {
	return &GoalAlerter{markers: markers, users: users, notifier: notifier, now: time.Now}
}

// CheckMilestones sends every milestone the goal's progress has reached and
// returns the percentages that were newly announced.
func (a *GoalAlerter) CheckMilestones(ctx context.Context, g core.SavingsGoal) ([]int, error) {
	progress := g.Progress()
	var sent []int
	for _, m := range Milestones {
		if progress < float64(m.Percent) {
			break
		}
		n := notify.Notification{
			Title:    fmt.Sprintf("Savings Goal Milestone: %d%%", m.Percent),
			Message:  m.Prefix + " Keep up the great work!",
			Category: core.CategoryGoalMilestone,
			Subject:  strconv.FormatInt(g.ID, 10),
		}
		ok, err := a.fire(ctx, g, m.AlertType, n)
		if err != nil {
			return sent, err
		}
		if ok {
			sent = append(sent, m.Percent)
		}
	}
	return sent, nil
}

// CheckDeadline sends the deadline alerts due for the goal on today.
func (a *GoalAlerter) CheckDeadline(ctx context.Context, g core.SavingsGoal, today core.Date) ([]string, error) {
	days, ok := g.DaysLeft(today)
	if !ok || g.Status != core.GoalActive {
		return nil, nil
	}
	var sent []string
	for _, alertType := range DueDeadlineAlerts(days) {
		rule, err := GetDeadlineRule(alertType)
		if err != nil {
			return sent, err
		}
		n := notify.Notification{
			Title:    "Savings Goal Deadline Alert",
			Message:  rule.Message(g.Name),
			Category: core.CategoryGoalDeadline,
			Subject:  strconv.FormatInt(g.ID, 10),
		}
		fired, err := a.fire(ctx, g, alertType, n)
		if err != nil {
			return sent, err
		}
		if fired {
			sent = append(sent, alertType)
		}
	}
	return sent, nil
}

// Forget clears the goal's markers so milestones can fire again.
func (a *GoalAlerter) Forget(ctx context.Context, goalID int64) error {
	return a.markers.ClearGoalAlerts(ctx, goalID)
}

func (a *GoalAlerter) fire(ctx context.Context, g core.SavingsGoal, alertType string, n notify.Notification) (bool, error) {
	inserted, err := a.markers.MarkGoalAlert(ctx, g.ID, g.UserID, alertType, a.now())
	if err != nil {
		return false, fmt.Errorf("mark goal alert %s: %w", alertType, err)
	}
	if !inserted {
		return false, nil
	}

	to, err := resolveRecipient(ctx, a.users, a.markers, g.UserID)
	if err != nil {
		return false, err
	}
	res := a.notifier.Dispatch(ctx, n, to, notify.AllChannels)
	slog.InfoContext(ctx, "Goal alert triggered",
		"user_id", g.UserID,
		"goal_id", g.ID,
		"alert_type", alertType,
		"delivered", res.Delivered())
	return true, nil
}

type preferenceReader interface {
	Preferences(ctx context.Context, userID int64) (core.NotificationPreference, error)
}

func resolveRecipient(ctx context.Context, users UserReader, prefs preferenceReader, userID int64) (notify.Recipient, error) {
	to := notify.Recipient{UserID: userID}
	user, err := users.Get(ctx, userID)
	if err != nil {
		return to, fmt.Errorf("load user: %w", err)
	}
	to.Email = user.Email
	p, err := prefs.Preferences(ctx, userID)
	if err != nil {
		return to, fmt.Errorf("load preferences: %w", err)
	}
	to.Prefs = p
	return to, nil
}
