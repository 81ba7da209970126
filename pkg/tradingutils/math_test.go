package tradingutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInvertPrice(t *testing.T) {
	t.Parallel()

	assert.True(t, InvertPrice(dec("10")).Equal(dec("0.1")))
	assert.True(t, InvertPrice(decimal.Zero).IsZero())

	// Round trip stays within the 16-digit division precision.
	p := dec("10.2")
	back := InvertPrice(InvertPrice(p))
	assert.True(t, back.Sub(p).Abs().LessThan(dec("0.0000000001")),
		"round trip drifted: %s", back)
}

func TestWithinBand(t *testing.T) {
	t.Parallel()

	tol := dec("0.005")
	center := dec("10.2")

	assert.True(t, WithinBand(dec("10.2"), center, tol))
	assert.True(t, WithinBand(dec("10.249"), center, tol))
	assert.True(t, WithinBand(dec("10.251"), center, tol)) // boundary 10.251 inclusive
	assert.False(t, WithinBand(dec("10.2511"), center, tol))
	assert.False(t, WithinBand(dec("10.1489"), center, tol))
	assert.True(t, WithinBand(decimal.Zero, decimal.Zero, tol))
	assert.False(t, WithinBand(dec("1"), decimal.Zero, tol))
}

func TestLadderPrices(t *testing.T) {
	t.Parallel()

	prices := LadderPrices(dec("10"), dec("0.02"), dec("0.01"), 3)

	require.Len(t, prices, 3)
	assert.True(t, prices[0].Equal(dec("10.2")))
	assert.True(t, prices[1].Equal(dec("10.3")))
	assert.True(t, prices[2].Equal(dec("10.4")))
}

func TestRounding(t *testing.T) {
	t.Parallel()

	assert.True(t, RoundPrice(dec("10.123456789"), 7).Equal(dec("10.1234568")))
	assert.True(t, RoundAmount(dec("33.333333333"), 7).Equal(dec("33.3333333")))
}

func TestPercentToFraction(t *testing.T) {
	t.Parallel()

	assert.True(t, PercentToFraction(dec("2")).Equal(dec("0.02")))
	assert.True(t, PercentToFraction(decimal.Zero).IsZero())
}
