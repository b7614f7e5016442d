package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSelection indicates a purchase option, sub-option or frame color the catalog does not offer.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrEmptyCart is returned when an order is requested for a cart without items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutUnavailable indicates the payment provider cannot take orders right now.
	ErrCheckoutUnavailable = errors.New("checkout unavailable")
	// ErrOrderMismatch indicates an approval or cancellation for an order that is not in flight.
	ErrOrderMismatch = errors.New("order is not in flight")
)
