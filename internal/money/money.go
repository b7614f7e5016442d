// Package money formats integer cent amounts.
package money

import "github.com/shopspring/decimal"

// Decimal renders cents with exactly two decimal places, e.g. 15000 -> "150.00".
func Decimal(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Format renders cents for display, e.g. 4500 -> "$45.00".
func Format(cents int64) string {
	d := decimal.New(cents, -2)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// Cents parses a two-decimal amount back into cents, rounding half away from zero.
func Cents(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
