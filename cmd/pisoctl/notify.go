package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pisoheroes/internal/notify"
)

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Inspect and exercise notification delivery",
	}
	cmd.AddCommand(testEmailCmd())
	cmd.AddCommand(listNotificationsCmd())
	cmd.AddCommand(deadlinesCmd())
	return cmd
}

func testEmailCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "test-email",
		Short: "Send a test email to an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}

			u, err := lookupUser(ctx, app, username)
			if err != nil {
				return err
			}
			res, err := app.Notifications.SendTestEmail(ctx, u.ID)
			if errors.Is(err, notify.ErrEmailNotConfigured) {
				return fmt.Errorf("email backend %q cannot send: %w", cfg.EmailBackend, err)
			}
			if err != nil {
				return fmt.Errorf("send test email: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "📧 Test email sent to %s via %s (log %d)\n", u.Email, app.Mailer.Name(), res.LogID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "recipient username")
	return cmd
}

func listNotificationsCmd() *cobra.Command {
	var username string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the latest notifications of an account on every channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}

			u, err := lookupUser(ctx, app, username)
			if err != nil {
				return err
			}
			items, err := app.Notifications.History(ctx, u.ID, 1, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tWHEN\tCHANNEL\tSTATUS\tTITLE")
			for _, n := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", n.ID, n.CreatedAt.In(app.Location).Format("2006-01-02 15:04"), n.Channel, n.Status, n.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show")
	return cmd
}

func deadlinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deadlines",
		Short: "Run one goal deadline scan now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}

			n, err := app.Deadlines.ProcessDeadlines(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "⏰ Sent %d deadline alerts\n", n)
			return nil
		},
	}
}
