package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pisoheroes/internal/backend"
	"pisoheroes/internal/cli"
	apphttp "pisoheroes/internal/http"
	"pisoheroes/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	app := cli.OpenApp(startCtx, logger, cfg, backend.Options{WithPush: true})
	cancelStart()
	defer app.Close()

	srv := apphttp.NewServer(":"+cfg.Port, app)
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting pisoheroes server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"email_backend", app.Mailer.Name(),
		"push", app.Push != nil,
		"timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		app.Close()
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
