package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"sidehustle-shop/internal/backend"
	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/money"
	"sidehustle-shop/internal/seed"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	session := flag.String("session", "demo", "session id whose cart is seeded")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithField(context.Background(), "session_id", *session)

	if cfg.Storage.Driver == config.StorageMemory {
		logg.Warn(ctx, "memory storage does not outlive this process, seeding anyway")
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.Load(cfg.Catalog.Path); err != nil {
			logg.Error(ctx, "failed to load catalog", err)
			os.Exit(1)
		}
	}

	b, err := backend.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open storage", err)
		os.Exit(1)
	}
	defer b.Close()

	sum, err := seed.Apply(ctx, b.Storage, cat, *session, seed.DemoSelections, logg)
	if err != nil {
		logg.Error(ctx, "seed apply failed", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d lines (%d items, %s) for session %s\n", sum.UniqueCount, sum.Count, money.Format(sum.Total), *session)
}
