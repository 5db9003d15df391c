package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/notify"
)

// NotificationStore is the local notification database.
type NotificationStore interface {
	Recent(ctx context.Context, userID int64, limit int) ([]core.NotificationLog, error)
	History(ctx context.Context, userID int64, limit, offset int) ([]core.NotificationLog, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID, id int64, at time.Time) error
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	Preferences(ctx context.Context, userID int64) (core.NotificationPreference, error)
	SavePreferences(ctx context.Context, p core.NotificationPreference) error
}

var ErrNoEmailAddress = errors.New("user has no email address")

// NotificationService serves the bell, history and preference pages.
type NotificationService struct {
	store    NotificationStore
	users    UserReader
	notifier Notifier
	now      func() time.Time
}

func NewNotificationService(store NotificationStore, users UserReader, notifier Notifier) *NotificationService {
	return &NotificationService{store: store, users: users, notifier: notifier, now: time.Now}
}

// Recent returns the newest dashboard notifications for the bell.
func (s *NotificationService) Recent(ctx context.Context, userID int64, limit int) ([]core.NotificationLog, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.store.Recent(ctx, userID, limit)
}

func (s *NotificationService) History(ctx context.Context, userID int64, page, perPage int) ([]core.NotificationLog, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 25
	}
	return s.store.History(ctx, userID, perPage, (page-1)*perPage)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	return s.store.MarkRead(ctx, userID, id, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Notifications marked read", "user_id", userID, "count", n)
	return n, nil
}

func (s *NotificationService) Preferences(ctx context.Context, userID int64) (core.NotificationPreference, error) {
	return s.store.Preferences(ctx, userID)
}

func (s *NotificationService) SavePreferences(ctx context.Context, p core.NotificationPreference) error {
	p.PushToken = strings.TrimSpace(p.PushToken)
	p.UpdatedAt = s.now()
	if err := s.store.SavePreferences(ctx, p); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Notification preferences saved",
		"user_id", p.UserID,
		"email_enabled", p.EmailEnabled,
		"push_enabled", p.PushEnabled)
	return nil
}

// SendTestEmail sends a system email to the user regardless of category
// preferences, so they can verify delivery.
func (s *NotificationService) SendTestEmail(ctx context.Context, userID int64) (notify.ChannelResult, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return notify.ChannelResult{}, err
	}
	if user.Email == "" {
		return notify.ChannelResult{}, ErrNoEmailAddress
	}
	to := notify.Recipient{UserID: userID, Email: user.Email, Prefs: core.DefaultPreferences(userID)}
	n := notify.Notification{
		Title:    "Test Email Notification",
		Message:  "This is a test email from PisoHeroes. If you received this, email notifications are working.",
		Category: core.CategorySystem,
	}
	res := s.notifier.Dispatch(ctx, n, to, notify.Channels{Email: true})
	return res.Email, res.Email.Err
}
