package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pisoheroes/internal/core"
)

// DeadlineGoals lists goals whose deadline is on or before a horizon.
type DeadlineGoals interface {
	ActiveWithDeadline(ctx context.Context, horizon core.Date) ([]core.SavingsGoal, error)
}

// DeadlineProcessor sends savings goal deadline alerts for every user.
type DeadlineProcessor struct {
	goals   DeadlineGoals
	alerter *GoalAlerter
	loc     *time.Location
}

func NewDeadlineProcessor(goals DeadlineGoals, alerter *GoalAlerter, loc *time.Location) *DeadlineProcessor {
	if loc == nil {
		loc = time.Local
	}
	return &DeadlineProcessor{goals: goals, alerter: alerter, loc: loc}
}

// ProcessDeadlines checks every active goal due within a week (or overdue)
// and returns how many alerts were sent.
func (p *DeadlineProcessor) ProcessDeadlines(ctx context.Context, now time.Time) (int, error) {
	if p.goals == nil || p.alerter == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.Today(now, p.loc)
	goals, err := p.goals.ActiveWithDeadline(ctx, today.AddDays(7))
	if err != nil {
		return 0, fmt.Errorf("failed to get goals with deadlines: %w", err)
	}

	slog.InfoContext(ctx, "Processing goal deadlines",
		"total_goals", len(goals),
		"processing_date", today.String())

	sent := 0
	for _, g := range goals {
		fired, err := p.alerter.CheckDeadline(ctx, g, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check goal deadline",
				"goal_id", g.ID,
				"user_id", g.UserID,
				"error", err)
			continue
		}
		sent += len(fired)
	}

	slog.InfoContext(ctx, "Goal deadline processing complete",
		"alerts_sent", sent,
		"total_checked", len(goals))

	return sent, nil
}
