package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pisoheroes/internal/alerts"
	"pisoheroes/internal/amqp"
	"pisoheroes/internal/analytics"
	"pisoheroes/internal/audit"
	"pisoheroes/internal/config"
	"pisoheroes/internal/email"
	"pisoheroes/internal/notify"
	"pisoheroes/internal/remote"
	"pisoheroes/internal/repository"
	"pisoheroes/internal/services"
	"pisoheroes/internal/storage"
	"pisoheroes/internal/wallet"
)

// App is the assembled application: stores, delivery channels and the
// services built on them.
type App struct {
	Config   *config.Config
	Location *time.Location

	Remote remote.Client
	Store  *repository.Store
	Logs   *storage.SQLiteRepository
	Mailer email.Sender
	// Push is nil when AMQP is not configured or unreachable.
	Push *amqp.Client

	Dispatcher *notify.Dispatcher
	Wallet     *wallet.Calculator
	Checker    *alerts.Checker
	Alerter    *services.GoalAlerter
	// Audit writes the audit trail into Logs.
	Audit *audit.Logger

	Expenses      *services.ExpenseService
	Alerts        *services.AlertService
	Income        *services.IncomeService
	Settings      *services.SettingsService
	Goals         *services.GoalService
	Reminders     *services.ReminderService
	Notifications *services.NotificationService
	Deadlines     *services.DeadlineProcessor
	Analytics     *analytics.Service
	AuditLog      *services.AuditService

	cleanups []CleanupFunc
}

// Options tune Open for the different binaries.
type Options struct {
	// WithPush connects to AMQP when a URL is configured.
	WithPush bool
	// SkipMigrations opens the remote store as is.
	SkipMigrations bool
}

// Open connects every store named in cfg and wires the services.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	bcfg, err := FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcfg.Migrate = !opts.SkipMigrations

	res, err := NewFactory(slog.Default()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Location: cfg.Location(), Remote: res.Client}
	if res.Cleanup != nil {
		app.cleanups = append(app.cleanups, res.Cleanup)
	}

	logs, err := storage.NewSQLiteRepository(cfg.NotifyDBPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open notification store: %w", err)
	}
	app.Logs = logs
	app.cleanups = append(app.cleanups, logs.Close)

	mailer, err := NewMailer(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Mailer = mailer

	dispatchOpts := []notify.Option{notify.WithMailer(mailer), notify.WithBaseURL(cfg.BaseURL)}
	if opts.WithPush && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPPushQueue)
		if err != nil {
			slog.WarnContext(ctx, "AMQP unavailable, push notifications will fail", "error", err)
		} else {
			app.Push = client
			app.cleanups = append(app.cleanups, client.Close)
			dispatchOpts = append(dispatchOpts, notify.WithPush(client))
			slog.InfoContext(ctx, "Initialized AMQP push publisher",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPPushQueue)
		}
	}

	app.wire(notify.NewDispatcher(logs, dispatchOpts...))
	return app, nil
}

func (a *App) wire(d *notify.Dispatcher) {
	store := repository.New(a.Remote)
	a.Store = store
	a.Dispatcher = d
	a.Audit = audit.NewLogger(a.Logs)
	a.Wallet = wallet.NewCalculator(store.Expenses, store.Income, store.Settings)
	a.Checker = alerts.NewChecker(store.Alerts, store.Expenses, store.Users, a.Logs, d, a.Location)
	a.Alerter = services.NewGoalAlerter(a.Logs, store.Users, d)

	a.Expenses = services.NewExpenseService(store.Expenses, a.Checker)
	a.Alerts = services.NewAlertService(store.Alerts)
	a.Income = services.NewIncomeService(store.Income)
	a.Settings = services.NewSettingsService(store.Settings)
	a.Goals = services.NewGoalService(store.Goals, a.Expenses, a.Income, a.Wallet, a.Alerter, a.Location)
	a.Reminders = services.NewReminderService(store.Reminders)
	a.Notifications = services.NewNotificationService(a.Logs, store.Users, d)
	a.Deadlines = services.NewDeadlineProcessor(store.Goals, a.Alerter, a.Location)
	a.Analytics = analytics.NewService(store.Expenses, store.Alerts, a.Location)
	a.AuditLog = services.NewAuditService(a.Logs)

	a.Checker.SetAuditor(a.Audit)
	a.Expenses.SetAuditor(a.Audit)
	a.Alerts.SetAuditor(a.Audit)
	a.Income.SetAuditor(a.Audit)
	a.Settings.SetAuditor(a.Audit)
	a.Goals.SetAuditor(a.Audit)
	a.Reminders.SetAuditor(a.Audit)
}

// NewMailer builds the email sender selected by EMAIL_BACKEND.
func NewMailer(ctx context.Context, cfg *config.Config) (email.Sender, error) {
	switch cfg.EmailBackend {
	case "smtp":
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}), nil
	case "gmail":
		s, err := email.NewGmailSender(ctx, cfg.GmailOAuthClientFile, cfg.GmailOAuthTokenFile, cfg.EmailFrom)
		if err != nil {
			return nil, fmt.Errorf("init gmail sender: %w", err)
		}
		return s, nil
	default:
		return email.LogSender{From: cfg.EmailFrom}, nil
	}
}

// Ping checks both stores.
func (a *App) Ping(ctx context.Context) error {
	var errs []error
	if err := a.Remote.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("remote store: %w", err))
	}
	if err := a.Logs.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notification store: %w", err))
	}
	return errors.Join(errs...)
}

// Close releases everything Open acquired, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
