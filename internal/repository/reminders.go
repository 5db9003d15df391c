package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

type Reminders struct {
	c remote.Client
}

func reminderFromRecord(r remote.Record) core.Reminder {
	return core.Reminder{
		ID:                 r.Int64("id"),
		UserID:             r.Int64("user_id"),
		Title:              r.String("title"),
		Description:        r.String("description"),
		DueAt:              r.TimePtr("due_at"),
		Frequency:          core.ReminderFrequency(r.String("frequency")),
		PreAlertOffsetDays: r.Int("pre_alert_offset_days"),
		Completed:          r.Bool("completed"),
		NotifyEmail:        r.Bool("notify_email"),
		NotifyInApp:        r.Bool("notify_in_app"),
		CreatedAt:          r.Time("created_at"),
		UpdatedAt:          r.Time("updated_at"),
	}
}

func reminderChanges(m core.Reminder) remote.Record {
	return remote.Record{
		"title":                 m.Title,
		"description":           m.Description,
		"due_at":                timeValue(m.DueAt),
		"frequency":             string(m.Frequency),
		"pre_alert_offset_days": m.PreAlertOffsetDays,
		"completed":             m.Completed,
		"notify_email":          m.NotifyEmail,
		"notify_in_app":         m.NotifyInApp,
		"updated_at":            remote.Timestamp(time.Now()),
	}
}

func (s *Reminders) Create(ctx context.Context, m core.Reminder) (core.Reminder, error) {
	rec := reminderChanges(m)
	rec["user_id"] = m.UserID
	rec["created_at"] = rec["updated_at"]
	out, err := s.c.Insert(ctx, tableReminders, rec)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	return reminderFromRecord(out), nil
}

func (s *Reminders) Update(ctx context.Context, m core.Reminder) error {
	n, err := s.c.Update(ctx, remote.From(tableReminders).Where(remote.Eq("id", m.ID), remote.Eq("user_id", m.UserID)), reminderChanges(m))
	if err != nil {
		return fmt.Errorf("update reminder %d: %w", m.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update reminder %d: %w", m.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Reminders) Delete(ctx context.Context, userID, id int64) error {
	n, err := s.c.Delete(ctx, remote.From(tableReminders).Where(remote.Eq("id", id), remote.Eq("user_id", userID)))
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete reminder %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Reminders) Get(ctx context.Context, userID, id int64) (core.Reminder, error) {
	rec, err := one(s.c.Select(ctx, remote.From(tableReminders).Where(remote.Eq("id", id), remote.Eq("user_id", userID))))
	if err != nil {
		return core.Reminder{}, fmt.Errorf("get reminder %d: %w", id, err)
	}
	return reminderFromRecord(rec), nil
}

// List returns open reminders before completed ones, each group by due time
// with undated reminders last, then newest first.
func (s *Reminders) List(ctx context.Context, userID int64) ([]core.Reminder, error) {
	recs, err := s.c.Select(ctx, remote.From(tableReminders).Where(remote.Eq("user_id", userID)))
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	out := make([]core.Reminder, 0, len(recs))
	for _, r := range recs {
		out = append(out, reminderFromRecord(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		switch {
		case a.DueAt != nil && b.DueAt == nil:
			return true
		case a.DueAt == nil && b.DueAt != nil:
			return false
		case a.DueAt != nil && !a.DueAt.Equal(*b.DueAt):
			return a.DueAt.Before(*b.DueAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}
