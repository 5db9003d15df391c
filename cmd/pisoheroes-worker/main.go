package main

import (
	"context"
	"errors"
	"os"
	"time"

	"pisoheroes/internal/backend"
	"pisoheroes/internal/cli"
	"pisoheroes/internal/log"
	"pisoheroes/internal/services"
	"pisoheroes/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting pisoheroes-worker")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	app := cli.OpenApp(startCtx, logger, cfg, backend.Options{WithPush: true, SkipMigrations: true})
	cancelStart()
	defer app.Close()

	pcfg := services.DefaultNotificationProcessorConfig()
	pcfg.DeadlineInterval = cfg.DeadlineInterval
	pcfg.StaleAfter = cfg.PushStaleAfter
	processor := services.NewNotificationProcessor(app.Deadlines, app.Logs, pcfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Notification processor stop", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start notification processor", "error", err)
		os.Exit(1)
	}

	if app.Push != nil {
		var gateway worker.Gateway = worker.LogGateway{}
		if cfg.PushGateway != "" {
			gateway = worker.NewHTTPGateway(cfg.PushGateway, 10*time.Second)
			logger.Info("Delivering push notifications via gateway", "url", cfg.PushGateway)
		} else {
			logger.Info("PUSH_GATEWAY_URL not set, push deliveries are only logged")
		}
		push := worker.NewPushWorker(app.Logs, gateway)
		go func() {
			if err := app.Push.ConsumePush(ctx, push.HandlePushMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Push consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP not configured, skipping push consumption")
	}

	<-ctx.Done()
	<-done
	logger.Info("Worker stopped")
}
