package backend

import (
	"fmt"

	"allowance/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            backendType,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		PostgresDSN:     appConfig.PostgresDSN,
		MongoURI:        appConfig.MongoURI,
		MongoDatabase:   appConfig.MongoDatabase,
		MongoCollection: appConfig.MongoCollection,
		DataDirectory:   appConfig.SeedDir,
		CacheSize:       appConfig.CacheSize,
		CacheTTL:        appConfig.CacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN is required for postgres backend")
		}
	case MongoBackend:
		if c.MongoURI == "" || c.MongoDatabase == "" || c.MongoCollection == "" {
			return fmt.Errorf("mongo URI, database and collection are required for mongo backend")
		}
	case MemoryBackend:
		// DataDirectory is optional.
	}

	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when the cache is enabled")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, MongoBackend}
}
