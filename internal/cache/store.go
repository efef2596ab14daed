package cache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"allowance/internal/kv"
)

// Store is a write-through, read-through cache in front of a kv.Store.
type Store struct {
	inner  kv.Store
	cache  *LRUCache[[]byte]
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

func NewStore(inner kv.Store, cache *LRUCache[[]byte]) *Store {
	return &Store{inner: inner, cache: cache}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		slog.DebugContext(ctx, "Record cache hit", "key", key)
		return append([]byte(nil), v...), nil
	}
	s.misses.Add(1)

	v, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, append([]byte(nil), v...))
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.inner.Set(ctx, key, value); err != nil {
		s.cache.Delete(key)
		return err
	}
	s.cache.Set(key, append([]byte(nil), value...))
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

func (s *Store) Close() error { return s.inner.Close() }

func (s *Store) Stats() Stats {
	return Stats{Entries: s.cache.Size(), Hits: s.hits.Load(), Misses: s.misses.Load()}
}
