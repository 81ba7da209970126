package ladder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
)

func testParams() Params {
	return Params{
		Leverage:        decimal.NewFromInt(300),
		OffsetPercent:   decimal.NewFromInt(2),
		StepPercent:     decimal.NewFromInt(1),
		RungCount:       3,
		MinRungFraction: decimal.NewFromFloat(0.1),
		PriceDecimals:   7,
		AmountDecimals:  7,
	}
}

func requireRungs(t *testing.T, rungs []core.DesiredRung, want [][2]string) {
	t.Helper()
	require.Len(t, rungs, len(want))
	for i, w := range want {
		assert.True(t, rungs[i].Price.Equal(decimal.RequireFromString(w[0])),
			"rung %d price: want %s, got %s", i, w[0], rungs[i].Price)
		assert.True(t, rungs[i].Amount.Equal(decimal.RequireFromString(w[1])),
			"rung %d amount: want %s, got %s", i, w[1], rungs[i].Amount)
	}
}

func TestPlan_FullLadder(t *testing.T) {
	t.Parallel()

	rungs := Plan(decimal.NewFromInt(10), testParams(), decimal.NewFromInt(300))

	requireRungs(t, rungs, [][2]string{
		{"10.2", "100"},
		{"10.3", "100"},
		{"10.4", "100"},
	})
}

func TestPlan_TruncatesFarEnd(t *testing.T) {
	t.Parallel()

	// Balance funds only two full rungs; the rungs closest to the reference
	// price survive.
	rungs := Plan(decimal.NewFromInt(10), testParams(), decimal.NewFromInt(200))

	requireRungs(t, rungs, [][2]string{
		{"10.2", "100"},
		{"10.3", "100"},
	})
}

func TestPlan_PartialFinalRung(t *testing.T) {
	t.Parallel()

	// 150 funds one full rung plus a 50 remainder; 50 clears the default
	// minimum (10% of 100) and is kept as a partial rung.
	rungs := Plan(decimal.NewFromInt(10), testParams(), decimal.NewFromInt(150))

	requireRungs(t, rungs, [][2]string{
		{"10.2", "100"},
		{"10.3", "50"},
	})
}

func TestPlan_PartialBelowMinimumDropped(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.MinRungFraction = decimal.NewFromFloat(0.6) // minimum rung is 60

	rungs := Plan(decimal.NewFromInt(10), p, decimal.NewFromInt(150))

	requireRungs(t, rungs, [][2]string{
		{"10.2", "100"},
	})
}

func TestPlan_BudgetNeverExceedsLeverage(t *testing.T) {
	t.Parallel()

	// Available far above leverage; total committed stays at leverage.
	rungs := Plan(decimal.NewFromInt(10), testParams(), decimal.NewFromInt(100000))

	total := decimal.Zero
	for _, r := range rungs {
		total = total.Add(r.Amount)
	}
	assert.True(t, total.LessThanOrEqual(decimal.NewFromInt(300)),
		"total %s exceeds leverage", total)
	require.Len(t, rungs, 3)
}

func TestPlan_ZeroBalance(t *testing.T) {
	t.Parallel()

	rungs := Plan(decimal.NewFromInt(10), testParams(), decimal.Zero)
	assert.Empty(t, rungs)
}

func TestPlan_InvalidInputs(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.RungCount = 0
	assert.Empty(t, Plan(decimal.NewFromInt(10), p, decimal.NewFromInt(300)))

	assert.Empty(t, Plan(decimal.Zero, testParams(), decimal.NewFromInt(300)))

	p = testParams()
	p.Leverage = decimal.Zero
	assert.Empty(t, Plan(decimal.NewFromInt(10), p, decimal.NewFromInt(300)))
}

func TestPlan_DropsRungsAboveMaxPrice(t *testing.T) {
	t.Parallel()

	// Reference price sits just inside the band ceiling; the far rungs land
	// above it and must not be planned.
	p := testParams()
	p.MinPrice = decimal.NewFromInt(5)
	p.MaxPrice = decimal.NewFromInt(20)

	rungs := Plan(decimal.RequireFromString("19.5"), p, decimal.NewFromInt(300))

	requireRungs(t, rungs, [][2]string{
		{"19.89", "100"},
	})
}

func TestPlan_DropsRungsBelowMinPrice(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.OffsetPercent = decimal.NewFromInt(-4) // nearest rung below the reference
	p.MinPrice = decimal.NewFromInt(10)
	p.MaxPrice = decimal.NewFromInt(20)

	rungs := Plan(decimal.RequireFromString("10.3"), p, decimal.NewFromInt(300))

	// 10.3 * (1 - 0.04 + i*0.01) = 9.888, 9.991, 10.094: only the last is in
	// the band.
	requireRungs(t, rungs, [][2]string{
		{"10.094", "100"},
	})
}

func TestPlan_ZeroBandIsUnbounded(t *testing.T) {
	t.Parallel()

	rungs := Plan(decimal.NewFromInt(10), testParams(), decimal.NewFromInt(300))
	require.Len(t, rungs, 3)
}

func TestBuyParams_InvertsStopBand(t *testing.T) {
	t.Parallel()

	cfg := &config.LadderConfig{
		LeverageAmountSell: 300,
		LeverageAmountBuy:  30,
		OffsetPercent:      2,
		StepPercent:        1,
		RungCount:          3,
		MinStopPrice:       5,
		MaxStopPrice:       20,
	}

	sell := SellParams(cfg)
	assert.True(t, sell.MinPrice.Equal(decimal.NewFromInt(5)))
	assert.True(t, sell.MaxPrice.Equal(decimal.NewFromInt(20)))

	buy := BuyParams(cfg)
	assert.True(t, buy.MinPrice.Equal(decimal.RequireFromString("0.05")),
		"mirror floor: want 0.05, got %s", buy.MinPrice)
	assert.True(t, buy.MaxPrice.Equal(decimal.RequireFromString("0.2")),
		"mirror ceiling: want 0.2, got %s", buy.MaxPrice)
}

func TestPerRungCap(t *testing.T) {
	t.Parallel()

	assert.True(t, PerRungCap(testParams()).Equal(decimal.NewFromInt(100)))

	p := testParams()
	p.RungCount = 0
	assert.True(t, PerRungCap(p).IsZero())
}
