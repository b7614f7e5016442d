package httpserver

import (
	"context"

	"sidehustle-shop/internal/cart"
	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/checkout"
	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/metrics"
	"sidehustle-shop/internal/storage"
)

type handler struct {
	cfg     *config.Config
	log     *logger.Logger
	storage storage.Storage
	bus     *events.Bus
	catalog *catalog.Catalog
	gateway checkout.Gateway
	metrics *metrics.ShopMetrics
	closing <-chan struct{}
}

// sessionStorage is the visitor's private slice of the shared backend.
func (h *handler) sessionStorage(sid string) storage.Storage {
	return storage.ForSession(h.storage, sid)
}

func (h *handler) openCart(ctx context.Context, sid string, bus *events.Bus) *cart.Store {
	return cart.Open(ctx, h.sessionStorage(sid), bus,
		cart.WithKeys(h.cfg.Cart.Key, h.cfg.Cart.VersionKey),
		cart.WithSchemaVersion(h.cfg.Cart.SchemaVersion),
		cart.WithScope(sid),
		cart.WithLogger(h.log),
	)
}

func (h *handler) openCheckout(ctx context.Context, sid string) *checkout.Adapter {
	store := h.openCart(ctx, sid, h.bus)
	return checkout.New(store, h.gateway, h.sessionStorage(sid), checkout.Config{
		Currency:    h.cfg.Checkout.Currency,
		SuccessPage: h.cfg.Checkout.SuccessPage,
		BrandName:   h.cfg.Checkout.BrandName,
		StateKey:    h.cfg.Checkout.StateKey,
		NoticeTTL:   h.cfg.Checkout.NoticeTTL,
	},
		checkout.WithLogger(h.log),
		checkout.WithRecorder(h.metrics),
		checkout.WithScope(sid),
	)
}
