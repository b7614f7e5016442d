// Package seed fills a session cart with demo lines for manual testing.
package seed

import (
	"context"
	"fmt"

	"sidehustle-shop/internal/cart"
	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/storage"
)

// DemoSelections are the lines Apply puts in the cart.
var DemoSelections = []catalog.Selection{
	{ProductID: "gal-001", OptionID: "framed-rect", SubOption: "portrait", FrameColor: "black", Quantity: 1},
	{ProductID: "gal-002", OptionID: "print", SubOption: "square", Quantity: 2},
	{ProductID: "gal-005", OptionID: "canvas", SubOption: "landscape", Quantity: 1},
}

// Apply replaces the cart of sessionID with sels. It is idempotent: the cart
// is cleared first.
func Apply(ctx context.Context, st storage.Storage, cat *catalog.Catalog, sessionID string, sels []catalog.Selection, logg *logger.Logger) (cart.Summary, error) {
	specs := make([]domain.AddSpec, 0, len(sels))
	for _, sel := range sels {
		spec, err := cat.Resolve(sel)
		if err != nil {
			return cart.Summary{}, fmt.Errorf("resolve %s: %w", sel.ProductID, err)
		}
		specs = append(specs, spec)
	}

	store := cart.Open(ctx, storage.ForSession(st, sessionID), events.NewBus(logg),
		cart.WithScope(sessionID),
		cart.WithLogger(logg),
	)
	store.ClearCart(ctx)
	for _, spec := range specs {
		store.AddItem(ctx, spec)
	}

	// The cart drops failed writes silently, so read back what landed.
	sum := store.Summary(ctx)
	if len(specs) > 0 && sum.Count == 0 {
		return sum, fmt.Errorf("cart is empty after seeding %d lines", len(specs))
	}
	return sum, nil
}
