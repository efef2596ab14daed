package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"allowance/internal/kv"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "alice"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	value := []byte(`{"username":"alice"}`)
	if err := s.Set(ctx, "alice", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'X' // caller mutation must not leak into the store

	got, err := s.Get(ctx, "alice")
	if err != nil || string(got) != `{"username":"alice"}` {
		t.Fatalf("unexpected get: %s err=%v", got, err)
	}
	got[0] = 'Y'
	again, _ := s.Get(ctx, "alice")
	if again[0] != '{' {
		t.Fatalf("returned slice aliases stored value")
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No files -> empty store
	if n := NewFromFiles(filepath.Join(dir, "missing")).Len(); n != 0 {
		t.Fatalf("expected empty store, got %d", n)
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("alice.json", `{"username":"alice"}`)
	mustWrite("notes.txt", "ignored")

	s := NewFromFiles(dir)
	if s.Len() != 1 {
		t.Fatalf("expected one seeded record, got %d", s.Len())
	}
	got, err := s.Get(context.Background(), "alice")
	if err != nil || string(got) != `{"username":"alice"}` {
		t.Fatalf("unexpected seed: %s err=%v", got, err)
	}
}
