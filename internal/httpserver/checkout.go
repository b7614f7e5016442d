package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type checkoutErrorRequest struct {
	Message string `json:"message"`
}

func (h *handler) checkoutStatus(c *gin.Context) {
	ctx := c.Request.Context()
	adapter := h.openCheckout(ctx, sessionID(c))
	c.JSON(http.StatusOK, adapter.Status(ctx))
}

func (h *handler) previewOrder(c *gin.Context) {
	ctx := c.Request.Context()
	adapter := h.openCheckout(ctx, sessionID(c))
	order, err := adapter.BuildOrder(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()
	adapter := h.openCheckout(ctx, sessionID(c))
	orderID, err := adapter.CreateOrder(ctx)
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderId": orderID})
}

func (h *handler) approveOrder(c *gin.Context) {
	ctx := c.Request.Context()
	adapter := h.openCheckout(ctx, sessionID(c))
	res, err := adapter.Approve(ctx, c.Param("id"))
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) cancelOrder(c *gin.Context) {
	ctx := c.Request.Context()
	adapter := h.openCheckout(ctx, sessionID(c))
	if err := adapter.Cancel(ctx, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkoutError records an error reported by the payment button in the browser.
func (h *handler) checkoutError(c *gin.Context) {
	var req checkoutErrorRequest
	_ = c.ShouldBindJSON(&req)
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		msg = "payment provider reported an error"
	}

	ctx := c.Request.Context()
	adapter := h.openCheckout(ctx, sessionID(c))
	c.JSON(http.StatusOK, adapter.Fail(ctx, errors.New(msg)))
}
