package checkout

import (
	"strconv"
	"unicode/utf8"

	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/money"
)

const (
	IntentCapture = "CAPTURE"

	// maxTextLen is the provider's limit for item names and descriptions.
	maxTextLen = 127
)

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Breakdown struct {
	ItemTotal Money `json:"item_total"`
}

type Amount struct {
	CurrencyCode string     `json:"currency_code"`
	Value        string     `json:"value"`
	Breakdown    *Breakdown `json:"breakdown,omitempty"`
}

type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitAmount  Money  `json:"unit_amount"`
	Quantity    string `json:"quantity"`
}

type PurchaseUnit struct {
	Amount Amount `json:"amount"`
	Items  []Item `json:"items"`
}

type ApplicationContext struct {
	BrandName string `json:"brand_name,omitempty"`
}

// OrderRequest is the order-creation body of the payment provider.
type OrderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []PurchaseUnit      `json:"purchase_units"`
	ApplicationContext *ApplicationContext `json:"application_context,omitempty"`
}

// NewOrderRequest maps cart lines to an order. total must be the cart total of
// the same read the lines came from.
func NewOrderRequest(lines []domain.LineItem, total int64, currency, brand string) OrderRequest {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{
			Name:        truncate(l.Title, maxTextLen),
			Description: truncate(l.Describe(), maxTextLen),
			UnitAmount:  Money{CurrencyCode: currency, Value: money.Decimal(l.Price)},
			Quantity:    strconv.Itoa(l.Quantity),
		})
	}
	value := money.Decimal(total)
	req := OrderRequest{
		Intent: IntentCapture,
		PurchaseUnits: []PurchaseUnit{{
			Amount: Amount{
				CurrencyCode: currency,
				Value:        value,
				Breakdown: &Breakdown{
					ItemTotal: Money{CurrencyCode: currency, Value: value},
				},
			},
			Items: items,
		}},
	}
	if brand != "" {
		req.ApplicationContext = &ApplicationContext{BrandName: brand}
	}
	return req
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
