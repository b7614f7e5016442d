package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sidehustle-shop/internal/backend"
	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/httpserver"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/metrics"
	"sidehustle-shop/internal/paypal"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"storage": cfg.Storage.Driver,
	})

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.Load(cfg.Catalog.Path); err != nil {
			logg.Error(ctx, "failed to load catalog", err)
			os.Exit(1)
		}
	}

	store, err := backend.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open storage", err)
		os.Exit(1)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shopMetrics := metrics.New(reg)

	bus := events.NewBus(logg)
	defer shopMetrics.Observe(bus)()

	pp, err := paypal.New(cfg.PayPal, logg)
	if err != nil {
		logg.Error(ctx, "failed to init paypal client", err)
		os.Exit(1)
	}
	if !cfg.PayPal.Configured() {
		logg.Warn(ctx, "paypal credentials missing, checkout unavailable")
	} else {
		logg.Info(logg.WithField(ctx, "paypal_env", pp.Environment()), "paypal client initialized")
	}

	srv, err := httpserver.New(cfg, logg, httpserver.Deps{
		Storage: store.Storage,
		Bus:     bus,
		Catalog: cat,
		Gateway: pp,
		Metrics: shopMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to init server", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", srv.Addr()), "starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
	case err := <-serverErr:
		logg.Error(ctx, "server error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	} else {
		logg.Info(ctx, "server stopped")
	}
}
