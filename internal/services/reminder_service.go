package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
)

type ReminderStore interface {
	Create(ctx context.Context, m core.Reminder) (core.Reminder, error)
	Update(ctx context.Context, m core.Reminder) error
	Delete(ctx context.Context, userID, id int64) error
	Get(ctx context.Context, userID, id int64) (core.Reminder, error)
	List(ctx context.Context, userID int64) ([]core.Reminder, error)
}

// ReminderService manages a user's reminders. Reminders are listed on
// their page only; nothing is dispatched for them.
type ReminderService struct {
	store ReminderStore
	audit audit.Recorder
	now   func() time.Time
}

func NewReminderService(store ReminderStore) *ReminderService {
	return &ReminderService{store: store, audit: audit.Discard, now: time.Now}
}

func (s *ReminderService) SetAuditor(r audit.Recorder) { s.audit = audit.Or(r) }

func normalizeReminder(m core.Reminder) core.Reminder {
	m.Title = strings.TrimSpace(m.Title)
	m.Description = strings.TrimSpace(m.Description)
	if m.DueAt != nil {
		t := m.DueAt.UTC()
		m.DueAt = &t
	}
	return m
}

func (s *ReminderService) CreateReminder(ctx context.Context, m core.Reminder) (core.Reminder, error) {
	m = normalizeReminder(m)
	m.Completed = false
	if err := m.Validate(); err != nil {
		return core.Reminder{}, err
	}
	saved, err := s.store.Create(ctx, m)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("save reminder: %w", err)
	}
	slog.InfoContext(ctx, "Reminder created", "user_id", saved.UserID, "reminder_id", saved.ID, "frequency", saved.Frequency)
	s.audit.Record(ctx, audit.Entry(saved.UserID, core.AuditCreate, core.ResourceReminder, saved.ID, map[string]any{
		"title":     saved.Title,
		"frequency": saved.Frequency,
	}))
	return saved, nil
}

// UpdateReminder replaces the editable fields of a reminder owned by
// m.UserID. Completion is kept as stored.
func (s *ReminderService) UpdateReminder(ctx context.Context, m core.Reminder) (core.Reminder, error) {
	current, err := s.store.Get(ctx, m.UserID, m.ID)
	if err != nil {
		return core.Reminder{}, err
	}
	m = normalizeReminder(m)
	m.Completed = current.Completed
	m.CreatedAt = current.CreatedAt
	if err := m.Validate(); err != nil {
		return core.Reminder{}, err
	}
	if err := s.store.Update(ctx, m); err != nil {
		return core.Reminder{}, err
	}
	slog.InfoContext(ctx, "Reminder updated", "user_id", m.UserID, "reminder_id", m.ID)
	s.audit.Record(ctx, audit.Entry(m.UserID, core.AuditUpdate, core.ResourceReminder, m.ID, map[string]any{
		"title": m.Title,
	}))
	return s.store.Get(ctx, m.UserID, m.ID)
}

// ToggleReminder flips the completed flag and returns the new state.
func (s *ReminderService) ToggleReminder(ctx context.Context, userID, id int64) (core.Reminder, error) {
	m, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return core.Reminder{}, err
	}
	m.Completed = !m.Completed
	if err := s.store.Update(ctx, m); err != nil {
		return core.Reminder{}, err
	}
	slog.InfoContext(ctx, "Reminder toggled", "user_id", userID, "reminder_id", id, "completed", m.Completed)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditUpdate, core.ResourceReminder, id, map[string]any{
		"completed": m.Completed,
	}))
	return m, nil
}

func (s *ReminderService) DeleteReminder(ctx context.Context, userID, id int64) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Reminder deleted", "user_id", userID, "reminder_id", id)
	s.audit.Record(ctx, audit.Entry(userID, core.AuditDelete, core.ResourceReminder, id, nil))
	return nil
}

func (s *ReminderService) GetReminder(ctx context.Context, userID, id int64) (core.Reminder, error) {
	return s.store.Get(ctx, userID, id)
}

// ReminderBoard splits a user's reminders for display.
type ReminderBoard struct {
	Overdue   []core.Reminder
	Upcoming  []core.Reminder
	Completed []core.Reminder
}

func (s *ReminderService) Board(ctx context.Context, userID int64) (ReminderBoard, error) {
	all, err := s.store.List(ctx, userID)
	if err != nil {
		return ReminderBoard{}, err
	}
	now := s.now()
	var b ReminderBoard
	for _, m := range all {
		switch {
		case m.Completed:
			b.Completed = append(b.Completed, m)
		case m.Overdue(now):
			b.Overdue = append(b.Overdue, m)
		default:
			b.Upcoming = append(b.Upcoming, m)
		}
	}
	return b, nil
}
