package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pisoheroes/internal/core"
)

// useMemoryBackend points the CLI at a fresh in-memory store for one test.
func useMemoryBackend(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("NOTIFY_DB_PATH", filepath.Join(dir, "notifications.db"))
	t.Setenv("EMAIL_BACKEND", "log")
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() { require.NoError(t, closeApp()) })
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	_, err := cmd.ExecuteC()
	return buf.String(), err
}

func TestUserAdd(t *testing.T) {
	useMemoryBackend(t)

	tests := []struct {
		name          string
		stdin         string
		args          []string
		errorContains string
		outputCheck   func(t *testing.T, output string)
	}{
		{
			name: "password flag",
			args: []string{"user", "add", "--username", "juan", "--email", "juan@example.com", "--password", "s3cret"},
			outputCheck: func(t *testing.T, output string) {
				t.Helper()
				assert.Contains(t, output, "Created user juan (id 1)")
			},
		},
		{
			name:  "password from stdin",
			stdin: "hunter22\n",
			args:  []string{"user", "add", "--username", "maria"},
			outputCheck: func(t *testing.T, output string) {
				t.Helper()
				assert.Contains(t, output, "Password: ")
				assert.Contains(t, output, "Created user maria")
			},
		},
		{
			name:          "duplicate username",
			args:          []string{"user", "add", "--username", "juan", "--password", "other"},
			errorContains: "user juan already exists",
		},
		{
			name:          "missing username",
			args:          []string{"user", "add", "--password", "x"},
			errorContains: "--username is required",
		},
		{
			name:          "blank password",
			stdin:         "   \n",
			args:          []string{"user", "add", "--username", "pedro"},
			errorContains: "password cannot be empty",
		},
		{
			name: "list",
			args: []string{"user", "list"},
			outputCheck: func(t *testing.T, output string) {
				t.Helper()
				assert.Contains(t, output, "USERNAME")
				assert.Contains(t, output, "juan@example.com")
				assert.Contains(t, output, "maria")
				assert.NotContains(t, output, "pedro")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.stdin, tt.args...)
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err, output)
			if tt.outputCheck != nil {
				tt.outputCheck(t, output)
			}
		})
	}
}

func TestSeed(t *testing.T) {
	useMemoryBackend(t)

	_, err := execute(t, "", "seed", "--days", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")

	_, err = execute(t, "", "seed", "--user", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = execute(t, "", "user", "add", "--username", "juan", "--password", "s3cret")
	require.NoError(t, err)

	output, err := execute(t, "", "seed", "--user", "juan", "--days", "5", "--allowance", "9000")
	require.NoError(t, err, output)
	assert.Contains(t, output, "income entries and 1 goal for juan")

	ctx := context.Background()
	u, err := opened.Store.Users.GetByUsername(ctx, "juan")
	require.NoError(t, err)
	allowance, err := opened.Settings.MonthlyAllowance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 900000}, allowance)

	expenses, err := opened.Store.Expenses.Recent(ctx, u.ID, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(expenses), 5, "at least one expense per day")
	goals, err := opened.Store.Goals.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "New phone", goals[0].Name)

	output, err = execute(t, "", "audit", "--user", "juan", "--action", "create", "--resource", "goal")
	require.NoError(t, err)
	assert.Contains(t, output, "CREATE")
	assert.Contains(t, output, "New phone")

	output, err = execute(t, "", "audit", "--resource", "user", "-o", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",CREATE,user,1,")
	assert.Contains(t, lines[1], "pisoctl")

	_, err = execute(t, "", "audit", "--action", "EXPLODE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "EXPLODE"`)
}
