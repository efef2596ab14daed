// Package records encodes user records as JSON documents in a kv.Store,
// one document per username.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"allowance/internal/core"
	"allowance/internal/kv"
)

// ErrNotFound is returned by Load when no record exists for the username.
var ErrNotFound = errors.New("user record not found")

type Repository struct {
	store kv.Store
}

func NewRepository(store kv.Store) *Repository {
	return &Repository{store: store}
}

// Load reads and decodes the record stored under username.
func (r *Repository) Load(ctx context.Context, username string) (*core.UserRecord, error) {
	data, err := r.store.Get(ctx, username)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load record %q: %w", username, err)
	}

	var rec core.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", username, err)
	}
	if rec.Username == "" {
		rec.Username = username
	}
	rec.Normalize()
	return &rec, nil
}

// Save writes the whole record under its username.
func (r *Repository) Save(ctx context.Context, rec *core.UserRecord) error {
	if rec.Username == "" {
		return core.ErrEmptyUsername
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", rec.Username, err)
	}
	if err := r.store.Set(ctx, rec.Username, data); err != nil {
		return fmt.Errorf("save record %q: %w", rec.Username, err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
