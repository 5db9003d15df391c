package backend

import (
	"fmt"

	"pisoheroes/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		DatabaseURL:  appConfig.DatabaseURL,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		Migrate:      true,
	}, nil
}
