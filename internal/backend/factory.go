package backend

import (
	"context"
	"fmt"
	"log/slog"

	"pisoheroes/internal/remote"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	default:
		return f.createMemoryBackend()
	}
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if config.Migrate {
		if err := remote.MigratePostgres(config.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	client, err := remote.NewPostgresClient(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
	}

	f.logger.Info("Initialized postgres backend", "migrated", config.Migrate)
	return &BackendResult{Client: client, Cleanup: client.Close}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := remote.NewSQLiteClient(ctx, config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	if config.Migrate {
		if err := remote.MigrateSQLite(config.SQLiteDBPath); err != nil {
			client.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, "migrated", config.Migrate)
	return &BackendResult{Client: client, Cleanup: client.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Initialized memory backend; data is lost on restart")
	return &BackendResult{Client: remote.NewMemoryClient()}, nil
}
