package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pisoheroes/internal/core"
	"pisoheroes/internal/export"
)

func exportCmd() *cobra.Command {
	var username, from, to, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export expenses as CSV or to Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if format == "sheets" {
				if err := cfg.ValidateExport(); err != nil {
					return err
				}
			} else if format != "csv" {
				return fmt.Errorf("unknown format %q (csv or sheets)", format)
			}

			app, err := openApp(ctx)
			if err != nil {
				return err
			}

			u, err := lookupUser(ctx, app, username)
			if err != nil {
				return err
			}
			today := core.Today(time.Now(), app.Location)
			start, end := today.MonthStart(), today
			if from != "" {
				if start, err = core.ParseDate(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if end, err = core.ParseDate(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			rows, err := export.Range(ctx, app.Store.Expenses, u.ID, start, end)
			if err != nil {
				return err
			}

			if format == "sheets" {
				exporter, err := export.NewSheetsExporter(ctx, cfg.GoogleServiceAccountFile, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
				if err != nil {
					return err
				}
				rng, err := exporter.Export(ctx, rows)
				if err != nil {
					return err
				}
				logger.Info("Exported expenses to Google Sheets", "user_id", u.ID, "rows", len(rows), "range", rng)
				fmt.Fprintf(cmd.OutOrStdout(), "📊 Wrote %d expenses to %s\n", len(rows), rng)
				return nil
			}

			w := cmd.OutOrStdout()
			if out == "" {
				out = export.Filename(start, end)
			}
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := export.WriteCSV(w, rows); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "📄 Wrote %d expenses to %s\n", len(rows), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (default: start of month)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or sheets")
	cmd.Flags().StringVarP(&out, "output", "o", "", "CSV file, - for stdout (default: expenses_<from>_<to>.csv)")
	return cmd
}
