// Package kv defines the key-value storage surface that user records are
// persisted to. Keys are usernames and values are JSON documents.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("key not found")

// Ports for outbound adapters.
type (
	Reader interface {
		Get(ctx context.Context, key string) ([]byte, error)
	}

	Writer interface {
		// Set stores value under key, replacing any previous value.
		Set(ctx context.Context, key string, value []byte) error
	}

	// Store is implemented by every persistence backend.
	Store interface {
		Reader
		Writer
		// Ping reports whether the backend is reachable.
		Ping(ctx context.Context) error
		Close() error
	}
)
