// Package services provides business logic and orchestration services.
//
// This file holds the savings goal deadline rules. Each alert type has its own
// rule deciding, from the days left until the target date, whether it fires.

package services

import (
	"fmt"
	"sort"
)

// DeadlineRule is the strategy interface for goal deadline alerts.
type DeadlineRule interface {
	// Applies reports whether the alert is due with daysLeft days until the
	// target date (negative once the date has passed).
	Applies(daysLeft int) bool
	// Message is the notification body for goalName.
	Message(goalName string) string
}

// WeekRule fires during the last week before the deadline.
type WeekRule struct{}

func (WeekRule) Applies(daysLeft int) bool { return daysLeft > 0 && daysLeft <= 7 }

func (WeekRule) Message(goalName string) string {
	return fmt.Sprintf("1 week remaining to reach your goal: %s", goalName)
}

// DayRule fires on the last day before the deadline.
type DayRule struct{}

func (DayRule) Applies(daysLeft int) bool { return daysLeft == 1 }

func (DayRule) Message(goalName string) string {
	return fmt.Sprintf("Only 1 day left for your goal: %s!", goalName)
}

// PassedRule fires once the deadline is behind us.
type PassedRule struct{}

func (PassedRule) Applies(daysLeft int) bool { return daysLeft < 0 }

func (PassedRule) Message(goalName string) string {
	return fmt.Sprintf("Deadline passed for goal: %s", goalName)
}

const (
	DeadlineWeek   = "deadline_week"
	DeadlineDay    = "deadline_day"
	DeadlinePassed = "deadline_passed"
)

// deadlineRules maps goal alert types to their rules.
var deadlineRules = map[string]DeadlineRule{
	DeadlineWeek:   WeekRule{},
	DeadlineDay:    DayRule{},
	DeadlinePassed: PassedRule{},
}

// GetDeadlineRule returns the rule registered for alertType.
func GetDeadlineRule(alertType string) (DeadlineRule, error) {
	rule, ok := deadlineRules[alertType]
	if !ok {
		return nil, fmt.Errorf("unknown deadline alert type: %s", alertType)
	}
	return rule, nil
}

// DueDeadlineAlerts lists, in a stable order, the alert types whose rule
// applies with daysLeft days remaining.
func DueDeadlineAlerts(daysLeft int) []string {
	var due []string
	for alertType, rule := range deadlineRules {
		if rule.Applies(daysLeft) {
			due = append(due, alertType)
		}
	}
	sort.Strings(due)
	return due
}
