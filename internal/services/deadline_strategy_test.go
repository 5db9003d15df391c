package services

import (
	"context"
	"reflect"
	"strconv"
	"testing"
	"time"

	"pisoheroes/internal/core"
)

func TestDeadlineRules(t *testing.T) {
	tests := []struct {
		name     string
		daysLeft int
		want     []string
	}{
		{"far away", 30, nil},
		{"eight days", 8, nil},
		{"one week", 7, []string{DeadlineWeek}},
		{"three days", 3, []string{DeadlineWeek}},
		{"last day", 1, []string{DeadlineDay, DeadlineWeek}},
		{"due today", 0, nil},
		{"passed", -1, []string{DeadlinePassed}},
		{"long passed", -40, []string{DeadlinePassed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DueDeadlineAlerts(tt.daysLeft)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DueDeadlineAlerts(%d) = %v, want %v", tt.daysLeft, got, tt.want)
			}
		})
	}
}

func TestGetDeadlineRule(t *testing.T) {
	rule, err := GetDeadlineRule(DeadlineDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rule.Message("Laptop"); got != "Only 1 day left for your goal: Laptop!" {
		t.Errorf("Message() = %q", got)
	}

	if _, err := GetDeadlineRule("deadline_month"); err == nil {
		t.Error("expected error for unknown alert type")
	}
}

func TestDeadlineProcessorSendsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	soon, err := e.store.Goals.Create(ctx, core.SavingsGoal{UserID: e.user.ID, Name: "Tuition", Target: pesos(5000), Status: core.GoalActive, TargetDate: e.today().AddDays(5)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.Goals.Create(ctx, core.SavingsGoal{UserID: e.user.ID, Name: "Someday", Target: pesos(5000), Status: core.GoalActive, TargetDate: e.today().AddDays(60)}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.Goals.Create(ctx, core.SavingsGoal{UserID: e.user.ID, Name: "Open ended", Target: pesos(5000), Status: core.GoalActive}); err != nil {
		t.Fatal(err)
	}

	p := NewDeadlineProcessor(e.store.Goals, e.alerter(), time.UTC)

	sent, err := p.ProcessDeadlines(ctx, e.now)
	if err != nil {
		t.Fatal(err)
	}
	if sent != 1 {
		t.Errorf("first scan sent %d alerts, want 1", sent)
	}

	sent, err = p.ProcessDeadlines(ctx, e.now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sent != 0 {
		t.Errorf("second scan sent %d alerts, want 0", sent)
	}

	// four days later only the last-day alert is new
	sent, err = p.ProcessDeadlines(ctx, e.now.AddDate(0, 0, 4))
	if err != nil {
		t.Fatal(err)
	}
	if sent != 1 {
		t.Errorf("last-day scan sent %d alerts, want 1", sent)
	}

	rows := e.dashboard(t)
	if len(rows) != 2 {
		t.Fatalf("got %d dashboard rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.Category != core.CategoryGoalDeadline {
			t.Errorf("category = %s, want %s", r.Category, core.CategoryGoalDeadline)
		}
		if r.Subject != strconv.FormatInt(soon.ID, 10) {
			t.Errorf("subject = %q, want goal id", r.Subject)
		}
	}
}

func TestNewDeadlineProcessorUninitialized(t *testing.T) {
	p := NewDeadlineProcessor(nil, nil, nil)
	if _, err := p.ProcessDeadlines(context.Background(), time.Now()); err == nil {
		t.Error("expected error from uninitialized processor")
	}
}
