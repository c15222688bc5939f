// Package pricing derives delivery fee, tax and grand total from a cart
// subtotal. Computation keeps full decimal precision; rounding to cents
// happens only when a value is formatted for display.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	// DefaultDeliveryFee is the flat delivery fee charged per checkout.
	DefaultDeliveryFee = decimal.RequireFromString("2.00")
	// DefaultTaxRate is the flat tax rate applied to the subtotal.
	DefaultTaxRate = decimal.RequireFromString("0.10")
)

// Calculator holds the pricing parameters.
type Calculator struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
}

// NewCalculator returns a Calculator with the default fee and tax rate.
func NewCalculator() Calculator {
	return Calculator{
		DeliveryFee: DefaultDeliveryFee,
		TaxRate:     DefaultTaxRate,
	}
}

// Summary is the full price breakdown of a cart.
type Summary struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// DeliveryFeeFor returns the delivery fee. It does not depend on the cart.
func (c Calculator) DeliveryFeeFor() decimal.Decimal {
	return c.DeliveryFee
}

// Tax returns subtotal times the tax rate.
func (c Calculator) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(c.TaxRate)
}

// GrandTotal returns subtotal plus delivery fee plus tax.
func (c Calculator) GrandTotal(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(c.DeliveryFeeFor()).Add(c.Tax(subtotal))
}

// Summarize computes the breakdown for subtotal.
func (c Calculator) Summarize(subtotal decimal.Decimal) Summary {
	return Summary{
		Subtotal:    subtotal,
		DeliveryFee: c.DeliveryFeeFor(),
		Tax:         c.Tax(subtotal),
		Total:       c.GrandTotal(subtotal),
	}
}

// Format renders d as a dollar amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
