package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pisoheroes/internal/core"
)

// NotificationProcessorConfig holds configuration for the notification processor
type NotificationProcessorConfig struct {
	// DeadlineInterval is how often goal deadlines are scanned (default: 1h)
	DeadlineInterval time.Duration

	// StaleInterval is how often pending push rows are checked (default: 5m)
	StaleInterval time.Duration

	// StaleAfter is how long a push row may stay pending before it is
	// marked failed (default: 15m)
	StaleAfter time.Duration

	// BatchSize is the max number of stale rows handled per cycle (default: 50)
	BatchSize int
}

// DefaultNotificationProcessorConfig returns sensible defaults
func DefaultNotificationProcessorConfig() NotificationProcessorConfig {
	return NotificationProcessorConfig{
		DeadlineInterval: time.Hour,
		StaleInterval:    5 * time.Minute,
		StaleAfter:       15 * time.Minute,
		BatchSize:        50,
	}
}

// StaleLogStore finds and fails push rows the worker never confirmed.
type StaleLogStore interface {
	Stale(ctx context.Context, channel core.Channel, status core.NotificationStatus, cutoff time.Time, limit int) ([]core.NotificationLog, error)
	UpdateStatus(ctx context.Context, id int64, status core.NotificationStatus, errMsg string, sentAt *time.Time) error
}

// NotificationProcessor runs the periodic notification housekeeping: goal
// deadline alerts and expiry of unconfirmed push deliveries.
type NotificationProcessor struct {
	deadlines *DeadlineProcessor
	logs      StaleLogStore
	config    NotificationProcessorConfig
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewNotificationProcessor(deadlines *DeadlineProcessor, logs StaleLogStore, config NotificationProcessorConfig) *NotificationProcessor {
	return &NotificationProcessor{
		deadlines: deadlines,
		logs:      logs,
		config:    config,
		now:       time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *NotificationProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("notification processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Notification processor started",
		"deadline_interval", p.config.DeadlineInterval,
		"stale_after", p.config.StaleAfter)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *NotificationProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Notification processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Notification processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *NotificationProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *NotificationProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	deadlineTicker := time.NewTicker(p.config.DeadlineInterval)
	defer deadlineTicker.Stop()

	staleTicker := time.NewTicker(p.config.StaleInterval)
	defer staleTicker.Stop()

	// Process immediately on startup
	p.scanDeadlines(ctx)
	p.ExpireStalePush(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-deadlineTicker.C:
			p.scanDeadlines(ctx)
		case <-staleTicker.C:
			p.ExpireStalePush(ctx)
		}
	}
}

func (p *NotificationProcessor) scanDeadlines(ctx context.Context) {
	if p.deadlines == nil {
		return
	}
	if _, err := p.deadlines.ProcessDeadlines(ctx, p.now()); err != nil {
		slog.ErrorContext(ctx, "Goal deadline scan failed", "error", err)
	}
}

// ExpireStalePush marks push rows still pending after StaleAfter as failed
// and returns how many were expired.
func (p *NotificationProcessor) ExpireStalePush(ctx context.Context) int {
	if p.logs == nil {
		return 0
	}
	cutoff := p.now().Add(-p.config.StaleAfter)
	rows, err := p.logs.Stale(ctx, core.ChannelPush, core.StatusPending, cutoff, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load stale push notifications", "error", err)
		return 0
	}

	expired := 0
	for _, n := range rows {
		if err := p.logs.UpdateStatus(ctx, n.ID, core.StatusFailed, "push delivery not confirmed", nil); err != nil {
			slog.ErrorContext(ctx, "Failed to expire push notification", "id", n.ID, "error", err)
			continue
		}
		expired++
	}
	if expired > 0 {
		slog.WarnContext(ctx, "Expired unconfirmed push notifications", "count", expired)
	}
	return expired
}
