package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"allowance/internal/cache"
	"allowance/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:     "mongo",
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "allowance",
		MongoCollection: "user_records",
		CacheSize:       10,
		CacheTTL:        time.Minute,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != MongoBackend || cfg.MongoCollection != "user_records" || cfg.CacheSize != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("sheets is not a backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil config accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without dsn", Config{Type: PostgresBackend}, true},
		{"mongo without collection", Config{Type: MongoBackend, MongoURI: "mongodb://x", MongoDatabase: "db"}, true},
		{"cache without ttl", Config{Type: MemoryBackend, CacheSize: 5}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackendWithSeeds(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alice.json"), []byte(`{"username":"alice"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	got, err := res.Store.Get(context.Background(), "alice")
	if err != nil || string(got) != `{"username":"alice"}` {
		t.Fatalf("seed not loaded: %s %v", got, err)
	}
}

func TestCreateSQLiteBackendWithCache(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "allowance.db"),
		CacheSize:    8,
		CacheTTL:     time.Minute,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cached, ok := res.Store.(*cache.Store)
	if !ok {
		t.Fatalf("store is %T, want *cache.Store", res.Store)
	}
	if err := res.Store.Set(ctx, "bob", []byte(`{"username":"bob"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := res.Store.Get(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if cached.Stats().Hits != 1 {
		t.Fatalf("stats = %+v", cached.Stats())
	}
	if err := res.Close(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
