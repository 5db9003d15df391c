package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pisoheroes/internal/amqp"
	"pisoheroes/internal/core"
	"pisoheroes/internal/email"
	"pisoheroes/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *fakeMailer) Name() string { return "fake" }

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePublisher struct {
	msgs []*amqp.PushMessage
	err  error
}

func (p *fakePublisher) PublishPush(_ context.Context, msg *amqp.PushMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func alertNotification() Notification {
	return Notification{
		Title:    "🚨 Budget Alert: Food",
		Message:  "Budget exceeded!",
		Category: core.CategoryBudgetAlert,
		Subject:  "Food",
	}
}

func recipient() Recipient {
	prefs := core.DefaultPreferences(1)
	prefs.PushEnabled = true
	prefs.PushToken = "device-1"
	return Recipient{UserID: 1, Email: "ana@example.com", Prefs: prefs}
}

func TestDispatchAllChannels(t *testing.T) {
	store := newStore(t)
	mailer := &fakeMailer{}
	pub := &fakePublisher{}
	d := NewDispatcher(store, WithMailer(mailer), WithPush(pub), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	res := d.Dispatch(ctx, alertNotification(), recipient(), AllChannels)
	require.NoError(t, res.Err())
	assert.True(t, res.Delivered())

	assert.True(t, res.Dashboard.Delivered)
	assert.True(t, res.Email.Delivered)
	assert.True(t, res.Push.Delivered)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "PisoHeroes - 🚨 Budget Alert: Food", mailer.sent[0].Subject)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, res.Push.LogID, pub.msgs[0].LogID)
	assert.Equal(t, "device-1", pub.msgs[0].Token)

	dash, err := store.GetLog(ctx, res.Dashboard.LogID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSent, dash.Status)
	assert.Equal(t, "Food", dash.Subject)

	mail, err := store.GetLog(ctx, res.Email.LogID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSent, mail.Status)
	assert.NotNil(t, mail.SentAt)

	push, err := store.GetLog(ctx, res.Push.LogID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, push.Status)
}

func TestEmailFailureDoesNotBlockDashboard(t *testing.T) {
	store := newStore(t)
	mailer := &fakeMailer{err: errors.New("smtp: 421 service not available")}
	d := NewDispatcher(store, WithMailer(mailer), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	res := d.Dispatch(ctx, alertNotification(), recipient(), Channels{Dashboard: true, Email: true})

	assert.True(t, res.Dashboard.Delivered)
	assert.False(t, res.Email.Delivered)
	assert.ErrorContains(t, res.Err(), "service not available")

	mail, err := store.GetLog(ctx, res.Email.LogID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, mail.Status)
	assert.Contains(t, mail.ErrorMessage, "421")

	recent, err := store.Recent(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestDashboardFailureDoesNotBlockEmail(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(&brokenStore{failChannel: core.ChannelDashboard}, WithMailer(mailer))

	res := d.Dispatch(context.Background(), alertNotification(), recipient(), Channels{Dashboard: true, Email: true})

	assert.Error(t, res.Dashboard.Err)
	assert.True(t, res.Email.Delivered)
	assert.Len(t, mailer.sent, 1)
}

func TestPreferencesVetoChannels(t *testing.T) {
	store := newStore(t)
	mailer := &fakeMailer{}
	pub := &fakePublisher{}
	d := NewDispatcher(store, WithMailer(mailer), WithPush(pub))

	to := recipient()
	to.Prefs.EmailBudgetAlerts = false
	to.Prefs.PushToken = ""

	res := d.Dispatch(context.Background(), alertNotification(), to, AllChannels)

	assert.True(t, res.Dashboard.Delivered)
	assert.False(t, res.Email.Attempted)
	assert.NotEmpty(t, res.Email.Skipped)
	assert.False(t, res.Push.Attempted)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, pub.msgs)
	assert.NoError(t, res.Err())
}

func TestMissingEmailAddressSkips(t *testing.T) {
	d := NewDispatcher(newStore(t), WithMailer(&fakeMailer{}))
	to := recipient()
	to.Email = ""

	res := d.Dispatch(context.Background(), alertNotification(), to, Channels{Email: true})
	assert.False(t, res.Email.Attempted)
	assert.Equal(t, "no email address", res.Email.Skipped)
	assert.False(t, res.Delivered())
}

func TestUnconfiguredChannelsFail(t *testing.T) {
	store := newStore(t)
	d := NewDispatcher(store)
	ctx := context.Background()

	res := d.Dispatch(ctx, alertNotification(), recipient(), Channels{Email: true, Push: true})

	assert.ErrorIs(t, res.Email.Err, ErrEmailNotConfigured)
	assert.ErrorIs(t, res.Push.Err, ErrPushNotConfigured)

	push, err := store.GetLog(ctx, res.Push.LogID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, push.Status)
}

type brokenStore struct {
	failChannel core.Channel
	next        int64
}

func (s *brokenStore) CreateLog(_ context.Context, n core.NotificationLog) (core.NotificationLog, error) {
	if n.Channel == s.failChannel {
		return core.NotificationLog{}, errors.New("database is locked")
	}
	s.next++
	n.ID = s.next
	return n, nil
}

func (s *brokenStore) UpdateStatus(context.Context, int64, core.NotificationStatus, string, *time.Time) error {
	return nil
}
