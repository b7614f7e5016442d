package pgstore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sidehustle-shop/internal/migrate"
	"sidehustle-shop/internal/storage"
)

func TestPostgres_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	s := New(pool, nil)
	if _, err := s.GetItem(ctx, "sess:sidehustle_cart"); !errors.Is(err, storage.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if err := s.SetItem(ctx, "sess:sidehustle_cart", "[]"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := s.SetItem(ctx, "sess:sidehustle_cart", `[{"id":"x"}]`); err != nil {
		t.Fatalf("SetItem overwrite: %v", err)
	}
	got, err := s.GetItem(ctx, "sess:sidehustle_cart")
	if err != nil || got != `[{"id":"x"}]` {
		t.Fatalf("unexpected value %q (%v)", got, err)
	}
	if err := s.RemoveItem(ctx, "sess:sidehustle_cart"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := s.RemoveItem(ctx, "sess:sidehustle_cart"); err != nil {
		t.Fatalf("RemoveItem absent: %v", err)
	}
}

func TestPostgres_WatchSeesOtherStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	watcher := New(pool, nil)
	writer := New(pool, nil)

	keys := make(chan string, 4)
	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = watcher.Watch(watchCtx, func(key string) { keys <- key })
	}()
	// LISTEN is issued asynchronously; give it a moment.
	time.Sleep(200 * time.Millisecond)

	if err := watcher.SetItem(ctx, "own", "1"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := writer.SetItem(ctx, "foreign", "1"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	select {
	case key := <-keys:
		if key != "foreign" {
			t.Fatalf("expected only the foreign key, got %q", key)
		}
	case <-ctx.Done():
		t.Fatal("no notification received")
	}
}

func TestPostgres_WatchersDoNotHoldPoolConns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	watcher := New(pool, nil)
	writer := New(pool, nil)

	const watchers = 5
	var mu sync.Mutex
	seen := map[int]bool{}
	watchCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < watchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = watcher.Watch(watchCtx, func(string) {
				mu.Lock()
				seen[i] = true
				mu.Unlock()
			})
		}()
	}
	time.Sleep(200 * time.Millisecond)

	readCtx, readCancel := context.WithTimeout(ctx, 2*time.Second)
	defer readCancel()
	if _, err := watcher.GetItem(readCtx, "sess:sidehustle_cart"); !errors.Is(err, storage.ErrNotExist) {
		t.Fatalf("expected a read to get a pool conn with %d open watchers, got %v", watchers, err)
	}
	if err := writer.SetItem(readCtx, "sess:sidehustle_cart", "[]"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == watchers {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	stop()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != watchers {
		t.Fatalf("expected every watcher notified, got %v", seen)
	}
	if watcher.listener != nil {
		t.Fatal("listener should close with the last watcher")
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE kv_store`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
