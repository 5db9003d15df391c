package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pisoheroes/internal/amqp"
	"pisoheroes/internal/core"
)

// Gateway delivers one push notification to a device.
type Gateway interface {
	Deliver(ctx context.Context, msg *amqp.PushMessage) error
}

// PushLogStore is the slice of the notification store the worker touches.
type PushLogStore interface {
	GetLog(ctx context.Context, id int64) (core.NotificationLog, error)
	UpdateStatus(ctx context.Context, id int64, status core.NotificationStatus, errMsg string, sentAt *time.Time) error
}

// PushWorker consumes queued push deliveries, hands them to the gateway and
// records the outcome on the notification row. Deliveries are attempted once.
type PushWorker struct {
	logs    PushLogStore
	gateway Gateway
	now     func() time.Time
}

func NewPushWorker(logs PushLogStore, gateway Gateway) *PushWorker {
	return &PushWorker{logs: logs, gateway: gateway, now: time.Now}
}

// HandlePushMessage processes a single push message from AMQP. It returns an
// error only when the outcome could not be recorded, so the broker redelivers.
func (w *PushWorker) HandlePushMessage(ctx context.Context, msg *amqp.PushMessage) error {
	slog.InfoContext(ctx, "Processing push message",
		"log_id", msg.LogID,
		"user_id", msg.UserID)

	row, err := w.logs.GetLog(ctx, msg.LogID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Push message for unknown notification, dropping", "log_id", msg.LogID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get notification log: %w", err)
	}
	if row.Status != core.StatusPending {
		slog.InfoContext(ctx, "Push notification already settled, skipping",
			"log_id", msg.LogID,
			"status", row.Status)
		return nil
	}

	if err := w.gateway.Deliver(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Push delivery failed",
			"log_id", msg.LogID,
			"user_id", msg.UserID,
			"error", err)
		if markErr := w.logs.UpdateStatus(ctx, msg.LogID, core.StatusFailed, err.Error(), nil); markErr != nil {
			return fmt.Errorf("mark push failed: %w", markErr)
		}
		return nil
	}

	sentAt := w.now()
	if err := w.logs.UpdateStatus(ctx, msg.LogID, core.StatusSent, "", &sentAt); err != nil {
		return fmt.Errorf("mark push sent: %w", err)
	}

	slog.InfoContext(ctx, "Successfully delivered push notification",
		"log_id", msg.LogID,
		"user_id", msg.UserID,
		"title", msg.Title)
	return nil
}

// HTTPGateway posts push notifications as JSON to a push gateway endpoint.
type HTTPGateway struct {
	url    string
	client *http.Client
}

func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{url: url, client: &http.Client{Timeout: timeout}}
}

type gatewayRequest struct {
	Token        string            `json:"token"`
	Notification gatewayNotice     `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type gatewayNotice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (g *HTTPGateway) Deliver(ctx context.Context, msg *amqp.PushMessage) error {
	body, err := json.Marshal(gatewayRequest{
		Token:        msg.Token,
		Notification: gatewayNotice{Title: msg.Title, Body: msg.Body},
		Data:         map[string]string{"category": msg.Category},
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("post push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

// LogGateway only logs deliveries; used when no gateway URL is configured.
type LogGateway struct{}

func (LogGateway) Deliver(ctx context.Context, msg *amqp.PushMessage) error {
	slog.InfoContext(ctx, "Push notification (log only)",
		"user_id", msg.UserID,
		"title", msg.Title,
		"category", msg.Category)
	return nil
}
