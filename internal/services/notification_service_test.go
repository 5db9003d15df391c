package services

import (
	"context"
	"testing"
	"time"

	"pisoheroes/internal/core"
	"pisoheroes/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationBell(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(e.logs, e.store.Users, e.dispatcher)
	svc.now = e.clock

	for _, title := range []string{"one", "two", "three"} {
		e.dispatcher.Dispatch(ctx, notify.Notification{Title: title, Category: core.CategorySystem}, notify.Recipient{UserID: e.user.ID}, notify.Channels{Dashboard: true})
	}

	recent, err := svc.Recent(ctx, e.user.ID, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	n, err := svc.UnreadCount(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, svc.MarkRead(ctx, e.user.ID, recent[0].ID))
	assert.ErrorIs(t, svc.MarkRead(ctx, e.user.ID+1, recent[1].ID), core.ErrNotFound)

	marked, err := svc.MarkAllRead(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	n, err = svc.UnreadCount(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := svc.History(ctx, e.user.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestNotificationPreferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(e.logs, e.store.Users, e.dispatcher)

	p, err := svc.Preferences(ctx, e.user.ID)
	require.NoError(t, err)
	assert.True(t, p.EmailEnabled)
	assert.False(t, p.PushEnabled)

	p.EmailBudgetAlerts = false
	p.PushEnabled = true
	p.PushToken = "  tok-123 "
	require.NoError(t, svc.SavePreferences(ctx, p))

	p, err = svc.Preferences(ctx, e.user.ID)
	require.NoError(t, err)
	assert.False(t, p.EmailBudgetAlerts)
	assert.True(t, p.AllowsPush())
	assert.Equal(t, "tok-123", p.PushToken)
}

func TestSendTestEmailWithoutMailer(t *testing.T) {
	e := newEnv(t)
	svc := NewNotificationService(e.logs, e.store.Users, e.dispatcher)

	res, err := svc.SendTestEmail(context.Background(), e.user.ID)
	assert.ErrorIs(t, err, notify.ErrEmailNotConfigured)
	assert.True(t, res.Attempted)

	row, err := e.logs.GetLog(context.Background(), res.LogID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, row.Status)
}

func TestSendTestEmailNoAddress(t *testing.T) {
	e := newEnv(t)
	u, err := e.store.Users.Create(context.Background(), core.User{Username: "noemail"})
	require.NoError(t, err)

	svc := NewNotificationService(e.logs, e.store.Users, e.dispatcher)
	_, err = svc.SendTestEmail(context.Background(), u.ID)
	assert.ErrorIs(t, err, ErrNoEmailAddress)
}

func TestExpireStalePush(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	old, err := e.logs.CreateLog(ctx, core.NotificationLog{UserID: e.user.ID, Title: "t", Category: core.CategorySystem, Channel: core.ChannelPush, CreatedAt: e.now.Add(-time.Hour)})
	require.NoError(t, err)
	fresh, err := e.logs.CreateLog(ctx, core.NotificationLog{UserID: e.user.ID, Title: "t", Category: core.CategorySystem, Channel: core.ChannelPush, CreatedAt: e.now.Add(-time.Minute)})
	require.NoError(t, err)

	p := NewNotificationProcessor(nil, e.logs, DefaultNotificationProcessorConfig())
	p.now = e.clock
	assert.Equal(t, 1, p.ExpireStalePush(ctx))

	got, err := e.logs.GetLog(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "push delivery not confirmed", got.ErrorMessage)

	got, err = e.logs.GetLog(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, got.Status)
}

func TestNotificationProcessorLifecycle(t *testing.T) {
	config := DefaultNotificationProcessorConfig()
	config.DeadlineInterval = 50 * time.Millisecond
	config.StaleInterval = 50 * time.Millisecond
	p := NewNotificationProcessor(nil, nil, config)

	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}
