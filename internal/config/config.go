package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port               string
	BaseURL            string
	SessionSecret      string
	RateLimitPerMinute int
	LogLevel           string
	Timezone           string

	// Remote store
	DataBackend  string
	DatabaseURL  string
	SQLiteDBPath string

	// Local notification store
	NotifyDBPath string

	// Email
	EmailBackend         string
	EmailFrom            string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	GmailOAuthClientFile string
	GmailOAuthTokenFile  string

	// AMQP push channel, disabled when AMQPURL is empty
	AMQPURL       string
	AMQPExchange  string
	AMQPPushQueue string
	PushGateway   string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string

	// Worker
	DeadlineInterval time.Duration
	PushStaleAfter   time.Duration
}

// defaults are also the set of keys read from the environment.
var defaults = map[string]any{
	"PORT":                        "8081",
	"BASE_URL":                    "http://localhost:8081",
	"SESSION_SECRET":              "",
	"RATE_LIMIT_PER_MINUTE":       60,
	"LOG_LEVEL":                   "info",
	"TIMEZONE":                    "Asia/Manila",
	"DATA_BACKEND":                "memory",
	"DATABASE_URL":                "",
	"SQLITE_DB_PATH":              "./data/pisoheroes.db",
	"NOTIFY_DB_PATH":              "./data/notifications.db",
	"EMAIL_BACKEND":               "log",
	"EMAIL_FROM":                  "noreply@pisoheroes.app",
	"SMTP_HOST":                   "smtp.gmail.com",
	"SMTP_PORT":                   587,
	"SMTP_USERNAME":               "",
	"SMTP_PASSWORD":               "",
	"GMAIL_OAUTH_CLIENT_FILE":     "",
	"GMAIL_OAUTH_TOKEN_FILE":      "",
	"AMQP_URL":                    "",
	"AMQP_EXCHANGE":               "pisoheroes",
	"AMQP_PUSH_QUEUE":             "push_notifications",
	"PUSH_GATEWAY_URL":            "",
	"GOOGLE_SPREADSHEET_ID":       "",
	"GOOGLE_SHEET_NAME":           "Expenses",
	"GOOGLE_SERVICE_ACCOUNT_FILE": "",
	"DEADLINE_INTERVAL":           time.Hour,
	"PUSH_STALE_AFTER":            15 * time.Minute,
}

// Load reads the configuration from the environment and, when present, a
// pisoheroes.yaml in the working directory or the file named by
// PISOHEROES_CONFIG. Environment variables win over the file.
func Load() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := os.Getenv("PISOHEROES_CONFIG"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("pisoheroes")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("Ignoring unreadable config file", "error", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:               v.GetString("PORT"),
		BaseURL:            strings.TrimRight(v.GetString("BASE_URL"), "/"),
		SessionSecret:      v.GetString("SESSION_SECRET"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		Timezone:           v.GetString("TIMEZONE"),

		DataBackend:  v.GetString("DATA_BACKEND"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),
		NotifyDBPath: v.GetString("NOTIFY_DB_PATH"),

		EmailBackend:         v.GetString("EMAIL_BACKEND"),
		EmailFrom:            v.GetString("EMAIL_FROM"),
		SMTPHost:             v.GetString("SMTP_HOST"),
		SMTPPort:             v.GetInt("SMTP_PORT"),
		SMTPUsername:         v.GetString("SMTP_USERNAME"),
		SMTPPassword:         v.GetString("SMTP_PASSWORD"),
		GmailOAuthClientFile: v.GetString("GMAIL_OAUTH_CLIENT_FILE"),
		GmailOAuthTokenFile:  v.GetString("GMAIL_OAUTH_TOKEN_FILE"),

		AMQPURL:       v.GetString("AMQP_URL"),
		AMQPExchange:  v.GetString("AMQP_EXCHANGE"),
		AMQPPushQueue: v.GetString("AMQP_PUSH_QUEUE"),
		PushGateway:   v.GetString("PUSH_GATEWAY_URL"),

		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleSheetName:          v.GetString("GOOGLE_SHEET_NAME"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),

		DeadlineInterval: v.GetDuration("DEADLINE_INTERVAL"),
		PushStaleAfter:   v.GetDuration("PUSH_STALE_AFTER"),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "postgres"}
	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	if c.NotifyDBPath == "" {
		errors = append(errors, "notification database path cannot be empty")
	} else if msg := ensureDir(c.NotifyDBPath); msg != "" {
		errors = append(errors, msg)
	}

	// Validate email configuration
	validEmail := []string{"log", "smtp", "gmail"}
	if !contains(validEmail, c.EmailBackend) {
		errors = append(errors, fmt.Sprintf("invalid email backend '%s': must be one of %v", c.EmailBackend, validEmail))
	}
	if c.EmailBackend != "log" && c.EmailFrom == "" {
		errors = append(errors, "EMAIL_FROM is required when sending real email")
	}
	if c.EmailBackend == "smtp" {
		if c.SMTPHost == "" {
			errors = append(errors, "SMTP host is required when using smtp email backend")
		}
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
		}
	}
	if c.EmailBackend == "gmail" {
		if c.GmailOAuthClientFile == "" || c.GmailOAuthTokenFile == "" {
			errors = append(errors, "GMAIL_OAUTH_CLIENT_FILE and GMAIL_OAUTH_TOKEN_FILE are required for gmail email backend")
		}
		for _, f := range []string{c.GmailOAuthClientFile, c.GmailOAuthTokenFile} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Gmail OAuth file does not exist: %s", f))
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPPushQueue == "" {
			errors = append(errors, "AMQP push queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.PushGateway != "" {
		if u, err := url.Parse(c.PushGateway); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid push gateway URL '%s'", c.PushGateway))
		}
	}

	// Validate worker configuration
	if c.DeadlineInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid deadline interval %v: must be at least 1 minute", c.DeadlineInterval))
	} else if c.DeadlineInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid deadline interval %v: must be at most 24 hours", c.DeadlineInterval))
	}
	if c.PushStaleAfter < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid push stale timeout %v: must be at least 1 minute", c.PushStaleAfter))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateExport checks the settings needed for the Google Sheets export.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for sheets export")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for sheets export")
	}
	if c.GoogleServiceAccountFile == "" {
		errors = append(errors, "GOOGLE_SERVICE_ACCOUNT_FILE is required for sheets export")
	} else if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
		errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
	}
	if len(errors) > 0 {
		return fmt.Errorf("export configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ensureDir creates the parent directory of path, returning a message on
// failure.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create database directory '%s': %v", dir, err)
		}
	}
	return ""
}
