package domain

import (
	"strings"
	"time"
)

// noneSelector stands in for an absent configuration selector inside a line item id.
const noneSelector = "none"

// LineItem is one persisted cart row: a product in a specific purchase configuration.
// Display fields are copied from the catalog when the item is added and never refreshed.
type LineItem struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"productId"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Type            string    `json:"type"`
	OptionID        string    `json:"optionId"`
	OptionLabel     string    `json:"optionLabel"`
	SubOption       string    `json:"subOption"`
	SubOptionLabel  string    `json:"subOptionLabel"`
	SizeNote        string    `json:"sizeNote"`
	FrameColor      string    `json:"frameColor"`
	FrameColorLabel string    `json:"frameColorLabel"`
	Price           int64     `json:"price"`
	Quantity        int       `json:"quantity"`
	AddedAt         time.Time `json:"addedAt"`
}

// Subtotal is the line price in cents.
func (l LineItem) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// AddSpec describes an item to add to the cart. Quantity <= 0 means 1.
type AddSpec struct {
	ProductID       string `json:"productId"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Type            string `json:"type"`
	OptionID        string `json:"optionId"`
	OptionLabel     string `json:"optionLabel"`
	SubOption       string `json:"subOption"`
	SubOptionLabel  string `json:"subOptionLabel"`
	SizeNote        string `json:"sizeNote"`
	FrameColor      string `json:"frameColor"`
	FrameColorLabel string `json:"frameColorLabel"`
	Price           int64  `json:"price"`
	Quantity        int    `json:"quantity"`
}

// LineItemID builds the composite key used to merge repeated additions of the
// same product configuration into one row.
func LineItemID(productID, optionID, subOption, frameColor string) string {
	return strings.Join([]string{
		productID,
		orNone(optionID),
		orNone(subOption),
		orNone(frameColor),
	}, "_")
}

// Describe joins the configuration labels of a line item for display and order
// payloads, e.g. "Framed Print - Portrait (14×18 in) - Black".
func (l LineItem) Describe() string {
	desc := l.OptionLabel
	if l.SubOptionLabel != "" {
		desc += " - " + l.SubOptionLabel
	}
	if l.SizeNote != "" {
		desc += " (" + l.SizeNote + ")"
	}
	if l.FrameColorLabel != "" {
		desc += " - " + l.FrameColorLabel
	}
	return strings.TrimSpace(strings.TrimPrefix(desc, " - "))
}

func orNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return noneSelector
	}
	return v
}
