package utils

import "github.com/shopspring/decimal"

// LineAmount returns quantity * unitPrice rounded to 4 decimal places.
func LineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(4)
}

// CalculateDiscountAmount applies a percent discount to the given base amount.
func CalculateDiscountAmount(base, discountPercent decimal.Decimal) decimal.Decimal {
	if discountPercent.IsZero() {
		return decimal.Zero
	}
	return base.Mul(discountPercent).Div(decimal.NewFromInt(100)).Round(4)
}

// CalculateTaxAmount applies a percent tax to the given taxable amount.
func CalculateTaxAmount(taxable, taxPercent decimal.Decimal) decimal.Decimal {
	if taxPercent.IsZero() {
		return decimal.Zero
	}
	return taxable.Mul(taxPercent).Div(decimal.NewFromInt(100)).Round(4)
}

// CalculateNetTotal derives the payable amount from the document totals.
// net = subtotal - discount + tax, never negative.
func CalculateNetTotal(subtotal, discountAmount, taxAmount decimal.Decimal) decimal.Decimal {
	net := subtotal.Sub(discountAmount).Add(taxAmount)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}
