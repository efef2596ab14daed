package backend

import (
	"context"
	"fmt"
	"log/slog"

	"allowance/internal/cache"
	"allowance/internal/kv"
	"allowance/internal/kv/memory"
	"allowance/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the configured store and, when enabled, puts the
// record cache in front of it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store kv.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = storage.NewSQLiteStore(config.SQLiteDBPath)
		if err == nil {
			f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		}
	case PostgresBackend:
		store, err = storage.NewPostgresStore(config.PostgresDSN)
		if err == nil {
			f.logger.Info("Initialized Postgres backend")
		}
	case MongoBackend:
		store, err = storage.NewMongoStore(ctx, config.MongoURI, config.MongoDatabase, config.MongoCollection)
		if err == nil {
			f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase, "collection", config.MongoCollection)
		}
	case MemoryBackend:
		store = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.Type, err)
	}

	if config.CacheSize <= 0 {
		return &BackendResult{Store: store, Cleanup: store.Close}, nil
	}

	manager := cache.NewManager()
	lru := cache.NewLRUCache[[]byte](config.CacheSize, config.CacheTTL)
	manager.Register(lru)
	manager.StartCleanup(config.CacheTTL)

	f.logger.Info("Record cache enabled", "size", config.CacheSize, "ttl", config.CacheTTL)

	return &BackendResult{
		Store: cache.NewStore(store, lru),
		Cleanup: func() error {
			manager.Stop()
			return store.Close()
		},
	}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) kv.Store {
	if config.DataDirectory == "" {
		f.logger.Info("Initialized memory backend")
		return memory.New()
	}
	store := memory.NewFromFiles(config.DataDirectory)
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory, "seeded_records", store.Len())
	return store
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

