package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/db"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|version")
	steps := flag.Int("steps", 1, "number of migrations to revert with -cmd=down")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	if cfg.DB.DSN == "" {
		fmt.Fprintf(os.Stderr, "%s is required\n", config.EnvDBDSN)
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer pool.Close()

	switch *cmd {
	case "up":
		requireResource(ctx, logg, "apply migrations", migrate.Apply(ctx, pool))
		logg.Info(ctx, "migrations applied")
	case "down":
		requireResource(ctx, logg, "rollback migrations", migrate.Rollback(ctx, pool, *steps))
		logg.Info(logg.WithField(ctx, "steps", *steps), "migrations rolled back")
	case "version":
		version, dirty, ok, err := migrate.Version(ctx, pool)
		requireResource(ctx, logg, "read version", err)
		if !ok {
			fmt.Println("no migrations applied")
			return
		}
		fmt.Printf("version %d (dirty=%t)\n", version, dirty)
	default:
		fmt.Fprintf(os.Stderr, "unknown -cmd %q\n", *cmd)
		os.Exit(2)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "migrate: "+name+" failed", err)
	os.Exit(1)
}
