// Command pisoctl administers a pisoheroes installation: migrations, users,
// demo data, notifications, expense exports and the audit trail.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pisoheroes/internal/backend"
	"pisoheroes/internal/cli"
	"pisoheroes/internal/config"
	"pisoheroes/internal/core"
	"pisoheroes/internal/log"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *log.Logger

	// opened is shared by every command of one run and closed by main.
	opened *backend.App
)

func newRootCmd() *cobra.Command {
	cfgFile = ""
	root := &cobra.Command{
		Use:               "pisoctl",
		Short:             "🪙 PisoHeroes administration",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pisoheroes.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(migrateCmd())
	root.AddCommand(userCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(notifyCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(auditCmd())
	return root
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	_, err := newRootCmd().ExecuteContextC(ctx)
	cancel()
	if cerr := closeApp(); cerr != nil {
		fmt.Fprintln(os.Stderr, "close stores:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	if cfgFile != "" {
		if err := os.Setenv("PISOHEROES_CONFIG", cfgFile); err != nil {
			return err
		}
	}
	cfg = config.Load()
	if level := viper.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger = cli.SetupLogger(cfg, log.ComponentCLI)
	return nil
}

// openApp opens the stores without push on first use; later calls in the
// same run get the same App.
func openApp(ctx context.Context) (*backend.App, error) {
	if opened != nil {
		return opened, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	app, err := backend.Open(ctx, cfg, backend.Options{})
	if err != nil {
		return nil, err
	}
	opened = app
	return app, nil
}

func closeApp() error {
	if opened == nil {
		return nil
	}
	err := opened.Close()
	opened = nil
	return err
}

func lookupUser(ctx context.Context, app *backend.App, username string) (core.User, error) {
	if username == "" {
		return core.User{}, fmt.Errorf("--user is required")
	}
	u, err := app.Store.Users.GetByUsername(ctx, username)
	if err != nil {
		return core.User{}, fmt.Errorf("find user %q: %w", username, err)
	}
	return u, nil
}
