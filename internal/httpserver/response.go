package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sidehustle-shop/internal/checkout"
	"sidehustle-shop/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSelection):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrOrderMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCheckoutUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "http: request error", err)
		msg = "internal error"
	}
	c.JSON(status, errorResponse{Error: msg})
}

// writeCheckoutError hides provider details behind the shopper-facing notice.
func (h *handler) writeCheckoutError(c *gin.Context, err error) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, errorResponse{Error: checkout.ErrorMessage})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
