package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"pisoheroes/internal/audit"
	"pisoheroes/internal/core"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(addUserCmd())
	cmd.AddCommand(listUsersCmd())
	return cmd
}

func addUserCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				p, err := readPassword(cmd.InOrStdin())
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = p
			}
			if strings.TrimSpace(password) == "" {
				return errors.New("password cannot be empty")
			}

			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}

			if _, err := app.Store.Users.GetByUsername(ctx, username); err == nil {
				return fmt.Errorf("user %s already exists", username)
			} else if !errors.Is(err, core.ErrNotFound) {
				return err
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			u, err := app.Store.Users.Create(ctx, core.User{
				Username:     username,
				Email:        strings.TrimSpace(email),
				PasswordHash: string(hash),
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			app.Audit.Record(ctx, audit.Entry(u.ID, core.AuditCreate, core.ResourceUser, u.ID, map[string]any{
				"username": u.Username,
				"source":   "pisoctl",
			}))
			logger.Info("User created", "user_id", u.ID, "username", u.Username)
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Created user %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "address for email notifications")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}

			users, err := app.Store.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Piped input, e.g. from scripts.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
