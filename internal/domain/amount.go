package domain

import "github.com/shopspring/decimal"

// AmountPrecision is the number of decimal places chain amounts are rounded to.
const AmountPrecision = 8

var (
	// PendingInflation is applied to pending order amounts when computing
	// available liquidity, keeping a margin for price movement.
	PendingInflation = decimal.RequireFromString("1.05")

	// SlippageFloor is the smallest target amount that is subject to the
	// slippage verdict. Dust amounts are never flagged.
	SlippageFloor = decimal.RequireFromString("0.000001")
)

// Round8 rounds an amount to AmountPrecision decimal places.
func Round8(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPrecision)
}

// Prorate returns share/total of amount rounded to AmountPrecision.
// A zero total yields zero.
func Prorate(amount, share, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return Round8(amount.Mul(share).Div(total))
}

// MaxPrice is the highest acceptable price given a reference price and a
// fractional slippage tolerance.
func MaxPrice(referencePrice, maxSlippage decimal.Decimal) decimal.Decimal {
	return referencePrice.Mul(decimal.NewFromInt(1).Add(maxSlippage))
}

// IsSlippageDetected reports whether swapping sourceAmount for targetAmount
// yields a worse price than referencePrice allows under maxSlippage.
func IsSlippageDetected(referencePrice, maxSlippage, sourceAmount, targetAmount decimal.Decimal) bool {
	maxPrice := MaxPrice(referencePrice, maxSlippage)
	if !maxPrice.IsPositive() {
		return false
	}
	minimalAllowedTarget := sourceAmount.Div(maxPrice)
	return targetAmount.GreaterThan(SlippageFloor) && targetAmount.LessThan(minimalAllowedTarget)
}
