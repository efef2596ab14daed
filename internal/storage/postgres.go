package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"allowance/internal/kv"
	"allowance/internal/log"

	_ "github.com/lib/pq"
)

// PostgresStore keeps user records in a postgres table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM user_records WHERE username = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user record %q: %w", key, err)
	}
	return []byte(data), nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_records (username, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (username) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()`, key, string(value))
	if err != nil {
		return fmt.Errorf("save user record %q: %w", key, err)
	}
	slog.DebugContext(ctx, "User record saved to Postgres", log.FieldComponent, log.ComponentStorage, "username", key, "bytes", len(value))
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
