package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sidehustle-shop/internal/cart"
	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/money"
)

type cartResponse struct {
	cart.Summary
	TotalFormatted string `json:"totalFormatted"`
}

type itemResponse struct {
	Item domain.LineItem `json:"item"`
	Cart cartResponse    `json:"cart"`
}

type defaultItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func toCartResponse(sum cart.Summary) cartResponse {
	return cartResponse{Summary: sum, TotalFormatted: money.Format(sum.Total)}
}

func (h *handler) getCart(c *gin.Context) {
	ctx := c.Request.Context()
	store := h.openCart(ctx, sessionID(c), h.bus)
	c.JSON(http.StatusOK, toCartResponse(store.Summary(ctx)))
}

func (h *handler) addItem(c *gin.Context) {
	var sel catalog.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(sel.ProductID) == "" {
		badRequest(c, "productId is required")
		return
	}
	h.add(c, sel)
}

func (h *handler) addDefaultItem(c *gin.Context) {
	var req defaultItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productId is required")
		return
	}
	sel, err := h.catalog.DefaultSelection(strings.TrimSpace(req.ProductID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.Quantity > 0 {
		sel.Quantity = req.Quantity
	}
	h.add(c, sel)
}

func (h *handler) add(c *gin.Context, sel catalog.Selection) {
	spec, err := h.catalog.Resolve(sel)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	store := h.openCart(ctx, sessionID(c), h.bus)
	item := store.AddItem(ctx, spec)
	c.JSON(http.StatusCreated, itemResponse{Item: item, Cart: toCartResponse(store.Summary(ctx))})
}

func (h *handler) updateQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	store := h.openCart(ctx, sessionID(c), h.bus)
	if !containsLine(store.GetCart(ctx), id) {
		h.writeError(c, domain.ErrNotFound)
		return
	}

	item := store.UpdateQuantity(ctx, id, *req.Quantity)
	if item == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, itemResponse{Item: *item, Cart: toCartResponse(store.Summary(ctx))})
}

func (h *handler) removeItem(c *gin.Context) {
	ctx := c.Request.Context()
	store := h.openCart(ctx, sessionID(c), h.bus)
	if !store.RemoveItem(ctx, c.Param("id")) {
		h.writeError(c, domain.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) clearCart(c *gin.Context) {
	ctx := c.Request.Context()
	h.openCart(ctx, sessionID(c), h.bus).ClearCart(ctx)
	c.Status(http.StatusNoContent)
}

func (h *handler) productInCart(c *gin.Context) {
	ctx := c.Request.Context()
	productID := c.Param("productId")
	store := h.openCart(ctx, sessionID(c), h.bus)
	c.JSON(http.StatusOK, gin.H{
		"productId": productID,
		"inCart":    store.IsInCart(ctx, productID),
		"items":     store.ItemsByProduct(ctx, productID),
	})
}

func containsLine(items []domain.LineItem, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
