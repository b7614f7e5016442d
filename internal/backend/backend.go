// Package backend opens the key-value storage selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/db"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/migrate"
	"sidehustle-shop/internal/storage"
	"sidehustle-shop/internal/storage/filestore"
	"sidehustle-shop/internal/storage/pgstore"
	"sidehustle-shop/internal/storage/redisstore"
)

// Backend is an opened storage driver plus whatever must be released on shutdown.
type Backend struct {
	Driver  string
	Storage storage.Storage
	closers []func()
}

// Close releases pools and connections in reverse order of acquisition.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open connects the storage driver named by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Backend, error) {
	if logg == nil {
		logg = logger.Discard()
	}
	b := &Backend{Driver: cfg.Storage.Driver}

	switch cfg.Storage.Driver {
	case config.StorageMemory, "":
		b.Driver = config.StorageMemory
		b.Storage = storage.NewMemory()
	case config.StorageFile:
		b.Storage = filestore.New(cfg.Storage.FilePath)
	case config.StorageRedis:
		rs, err := redisstore.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		b.Storage = rs
		b.closers = append(b.closers, func() {
			if err := rs.Close(); err != nil {
				logg.Error(context.Background(), "backend: close redis", err)
			}
		})
	case config.StoragePostgres:
		pool, err := openPostgres(ctx, cfg.DB, logg)
		if err != nil {
			return nil, err
		}
		b.Storage = pgstore.New(pool, logg)
		b.closers = append(b.closers, pool.Close)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	logg.Info(logg.WithField(ctx, "driver", b.Driver), "backend: storage opened")
	return b, nil
}

func openPostgres(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if cfg.AutoMigrate {
		if err := migrate.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		logg.Info(ctx, "backend: migrations applied")
	}
	return pool, nil
}
