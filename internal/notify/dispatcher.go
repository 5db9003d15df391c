// Package notify fans a notification out to the dashboard bell, email and
// push. Channels are independent: a failure on one never prevents delivery
// on the others, and every attempt is recorded in the notification log.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pisoheroes/internal/amqp"
	"pisoheroes/internal/core"
	"pisoheroes/internal/email"
)

// LogStore persists delivery records.
type LogStore interface {
	CreateLog(ctx context.Context, n core.NotificationLog) (core.NotificationLog, error)
	UpdateStatus(ctx context.Context, id int64, status core.NotificationStatus, errMsg string, sentAt *time.Time) error
}

// PushPublisher hands push deliveries to the push worker.
type PushPublisher interface {
	PublishPush(ctx context.Context, msg *amqp.PushMessage) error
}

var (
	ErrEmailNotConfigured = errors.New("email sender not configured")
	ErrPushNotConfigured  = errors.New("push publisher not configured")
)

// Notification is what gets delivered.
type Notification struct {
	Title    string
	Message  string
	Category core.NotificationCategory
	// Subject is the budget category or goal the notification is about.
	Subject string
}

// Recipient identifies who receives the notification and how they want it.
type Recipient struct {
	UserID int64
	Email  string
	Prefs  core.NotificationPreference
}

// Channels selects the channels requested by the caller. Preferences can
// still veto email and push.
type Channels struct {
	Dashboard bool
	Email     bool
	Push      bool
}

// AllChannels requests every channel.
var AllChannels = Channels{Dashboard: true, Email: true, Push: true}

// Any reports whether at least one channel is requested.
func (c Channels) Any() bool {
	return c.Dashboard || c.Email || c.Push
}

// ChannelResult is the outcome of one channel.
type ChannelResult struct {
	Channel   core.Channel
	Attempted bool
	// Delivered is true once the channel accepted the notification. For push
	// this means the message was queued.
	Delivered bool
	LogID     int64
	Skipped   string
	Err       error
}

// Result collects per-channel outcomes.
type Result struct {
	Dashboard ChannelResult
	Email     ChannelResult
	Push      ChannelResult
}

// Channels returns the results in dispatch order.
func (r *Result) Channels() []ChannelResult {
	return []ChannelResult{r.Dashboard, r.Email, r.Push}
}

// Delivered reports whether any channel delivered.
func (r *Result) Delivered() bool {
	for _, c := range r.Channels() {
		if c.Delivered {
			return true
		}
	}
	return false
}

// Err joins the errors of every failed channel.
func (r *Result) Err() error {
	var errs []error
	for _, c := range r.Channels() {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Channel, c.Err))
		}
	}
	return errors.Join(errs...)
}

// Dispatcher delivers notifications.
type Dispatcher struct {
	store   LogStore
	mailer  email.Sender
	push    PushPublisher
	baseURL string
	now     func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMailer enables the email channel.
func WithMailer(s email.Sender) Option {
	return func(d *Dispatcher) { d.mailer = s }
}

// WithPush enables the push channel.
func WithPush(p PushPublisher) Option {
	return func(d *Dispatcher) { d.push = p }
}

// WithBaseURL sets the link used in emails.
func WithBaseURL(u string) Option {
	return func(d *Dispatcher) { d.baseURL = u }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(store LogStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers n to the requested channels. It never fails as a whole;
// inspect the result for per-channel errors.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification, to Recipient, ch Channels) *Result {
	res := &Result{
		Dashboard: ChannelResult{Channel: core.ChannelDashboard},
		Email:     ChannelResult{Channel: core.ChannelEmail},
		Push:      ChannelResult{Channel: core.ChannelPush},
	}

	if ch.Dashboard {
		res.Dashboard = d.dashboard(ctx, n, to)
	}
	if ch.Email {
		res.Email = d.email(ctx, n, to)
	}
	if ch.Push {
		res.Push = d.pushChannel(ctx, n, to)
	}

	for _, c := range res.Channels() {
		if c.Err != nil {
			slog.WarnContext(ctx, "Notification channel failed",
				"user_id", to.UserID,
				"channel", c.Channel,
				"category", n.Category,
				"error", c.Err)
		}
	}
	return res
}

func (d *Dispatcher) newLog(n Notification, to Recipient, ch core.Channel, status core.NotificationStatus) core.NotificationLog {
	return core.NotificationLog{
		UserID:    to.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Subject:   n.Subject,
		Channel:   ch,
		Status:    status,
		CreatedAt: d.now(),
	}
}

func (d *Dispatcher) dashboard(ctx context.Context, n Notification, to Recipient) ChannelResult {
	res := ChannelResult{Channel: core.ChannelDashboard, Attempted: true}

	entry := d.newLog(n, to, core.ChannelDashboard, core.StatusSent)
	sent := entry.CreatedAt
	entry.SentAt = &sent

	saved, err := d.store.CreateLog(ctx, entry)
	if err != nil {
		res.Err = err
		return res
	}
	res.LogID = saved.ID
	res.Delivered = true
	slog.InfoContext(ctx, "Dashboard notification created", "user_id", to.UserID, "title", n.Title)
	return res
}

func (d *Dispatcher) email(ctx context.Context, n Notification, to Recipient) ChannelResult {
	res := ChannelResult{Channel: core.ChannelEmail}
	switch {
	case !to.Prefs.AllowsEmail(n.Category):
		res.Skipped = "disabled in preferences"
		return res
	case to.Email == "":
		res.Skipped = "no email address"
		return res
	}
	res.Attempted = true

	saved, err := d.store.CreateLog(ctx, d.newLog(n, to, core.ChannelEmail, core.StatusPending))
	if err != nil {
		res.Err = err
		return res
	}
	res.LogID = saved.ID

	sendErr := d.sendEmail(ctx, n, to)
	if sendErr != nil {
		res.Err = sendErr
		if err := d.store.UpdateStatus(ctx, saved.ID, core.StatusFailed, sendErr.Error(), nil); err != nil {
			slog.ErrorContext(ctx, "Failed to mark email notification failed", "id", saved.ID, "error", err)
		}
		return res
	}

	sentAt := d.now()
	if err := d.store.UpdateStatus(ctx, saved.ID, core.StatusSent, "", &sentAt); err != nil {
		slog.ErrorContext(ctx, "Failed to mark email notification sent", "id", saved.ID, "error", err)
	}
	res.Delivered = true
	slog.InfoContext(ctx, "Email sent successfully", "user_id", to.UserID, "title", n.Title)
	return res
}

func (d *Dispatcher) sendEmail(ctx context.Context, n Notification, to Recipient) error {
	if d.mailer == nil {
		return ErrEmailNotConfigured
	}
	msg, err := email.Compose(to.Email, string(n.Category), n.Title, n.Message, d.baseURL)
	if err != nil {
		return err
	}
	return d.mailer.Send(ctx, msg)
}

func (d *Dispatcher) pushChannel(ctx context.Context, n Notification, to Recipient) ChannelResult {
	res := ChannelResult{Channel: core.ChannelPush}
	if !to.Prefs.AllowsPush() {
		res.Skipped = "push disabled or no device token"
		return res
	}
	res.Attempted = true

	saved, err := d.store.CreateLog(ctx, d.newLog(n, to, core.ChannelPush, core.StatusPending))
	if err != nil {
		res.Err = err
		return res
	}
	res.LogID = saved.ID

	if d.push == nil {
		res.Err = ErrPushNotConfigured
	} else {
		msg := amqp.NewPushMessage(saved.ID, to.UserID, to.Prefs.PushToken, n.Title, n.Message, string(n.Category))
		res.Err = d.push.PublishPush(ctx, msg)
	}
	if res.Err != nil {
		if err := d.store.UpdateStatus(ctx, saved.ID, core.StatusFailed, res.Err.Error(), nil); err != nil {
			slog.ErrorContext(ctx, "Failed to mark push notification failed", "id", saved.ID, "error", err)
		}
		return res
	}
	// The push worker marks the row sent once the gateway accepts it.
	res.Delivered = true
	return res
}
