package tradingutils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the specified decimals
func RoundPrice(price decimal.Decimal, priceDecimals int) decimal.Decimal {
	return price.Round(int32(priceDecimals))
}

// RoundAmount rounds an offer amount to the specified decimals
func RoundAmount(amount decimal.Decimal, amountDecimals int) decimal.Decimal {
	return amount.Round(int32(amountDecimals))
}

// InvertPrice converts a price quoted in one pair direction into the mirror
// direction. Returns zero for a zero input.
func InvertPrice(price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).DivRound(price, 16)
}

// WithinBand reports whether price lies inside the symmetric tolerance band
// [center*(1-tol), center*(1+tol)]. tol is a fraction, e.g. 0.005 for 0.5%.
func WithinBand(price, center, tol decimal.Decimal) bool {
	if center.IsZero() {
		return price.IsZero()
	}
	low := center.Mul(decimal.NewFromInt(1).Sub(tol))
	high := center.Mul(decimal.NewFromInt(1).Add(tol))
	return price.GreaterThanOrEqual(low) && price.LessThanOrEqual(high)
}

// LadderPrices generates count rung prices ref*(1+offset+i*step) for i in
// [0, count). offset and step are fractions.
func LadderPrices(ref, offset, step decimal.Decimal, count int) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, count)
	one := decimal.NewFromInt(1)
	for i := 0; i < count; i++ {
		factor := one.Add(offset).Add(step.Mul(decimal.NewFromInt(int64(i))))
		prices = append(prices, ref.Mul(factor))
	}
	return prices
}

// PercentToFraction converts a percentage value (2 means 2%) into a fraction.
func PercentToFraction(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(decimal.NewFromInt(100))
}
