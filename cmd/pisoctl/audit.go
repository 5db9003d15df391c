package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pisoheroes/internal/core"
	"pisoheroes/internal/export"
)

func auditCmd() *cobra.Command {
	var username, action, resource, search, format string
	var days, limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail, for every account or one user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := core.AuditFilter{Search: search, Limit: limit}
			if action != "" {
				f.Action = core.AuditAction(strings.ToUpper(action))
				if !f.Action.Valid() {
					return fmt.Errorf("unknown action %q", action)
				}
			}
			if resource != "" {
				f.Resource = core.AuditResource(strings.ToLower(resource))
				if !f.Resource.Valid() {
					return fmt.Errorf("unknown resource %q", resource)
				}
			}
			if days > 0 {
				f.Since = time.Now().Add(-time.Duration(days) * 24 * time.Hour)
			}
			if format != "table" && format != "csv" {
				return fmt.Errorf("unknown format %q (table or csv)", format)
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			if username != "" {
				u, err := lookupUser(ctx, app, username)
				if err != nil {
					return err
				}
				f.UserID = u.ID
			}

			entries, err := app.Logs.ListAudit(ctx, f)
			if err != nil {
				return err
			}
			if format == "csv" {
				return export.WriteAuditCSV(cmd.OutOrStdout(), entries, app.Location)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "WHEN\tUSER\tACTION\tRESOURCE\tID\tIP\tDETAILS")
			for _, e := range entries {
				user := "-"
				if e.UserID != 0 {
					user = fmt.Sprint(e.UserID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.In(app.Location).Format("2006-01-02 15:04:05"),
					user, e.Action, e.Resource, e.ResourceID, e.IPAddress, e.MetadataJSON())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "only this username (default: every account)")
	cmd.Flags().StringVar(&action, "action", "", "action type, e.g. LOGIN_FAILED")
	cmd.Flags().StringVar(&resource, "resource", "", "resource type, e.g. expense")
	cmd.Flags().StringVar(&search, "search", "", "substring of resource id or details")
	cmd.Flags().IntVar(&days, "days", 30, "look back this many days (0 for all)")
	cmd.Flags().IntVar(&limit, "limit", 50, "rows to show")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "table or csv")
	return cmd
}
