// Package ladder computes the desired ladder of resting offers for one side
// of an asset pair. Planning is pure: no I/O, deterministic for given inputs.
package ladder

import (
	"github.com/shopspring/decimal"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	"ladder_maker/pkg/tradingutils"
)

// Params are the planning inputs for one side of a pair.
type Params struct {
	Leverage        decimal.Decimal // max notional committed to this side
	OffsetPercent   decimal.Decimal // distance of the nearest rung, percentage points
	StepPercent     decimal.Decimal // spacing between rungs, percentage points
	RungCount       int
	MinRungFraction decimal.Decimal // smallest partial rung, as fraction of a full rung
	MinPrice        decimal.Decimal // lowest placeable rung price; zero disables the bound
	MaxPrice        decimal.Decimal // highest placeable rung price; zero disables the bound
	PriceDecimals   int
	AmountDecimals  int
}

// SellParams extracts the forward-side planning parameters. The stop-loss
// band doubles as the placement bound: no rung may rest outside it.
func SellParams(cfg *config.LadderConfig) Params {
	return Params{
		Leverage:        decimal.NewFromFloat(cfg.LeverageAmountSell),
		OffsetPercent:   decimal.NewFromFloat(cfg.OffsetPercent),
		StepPercent:     decimal.NewFromFloat(cfg.StepPercent),
		RungCount:       cfg.RungCount,
		MinRungFraction: decimal.NewFromFloat(cfg.MinRungFraction),
		MinPrice:        decimal.NewFromFloat(cfg.MinStopPrice),
		MaxPrice:        decimal.NewFromFloat(cfg.MaxStopPrice),
		PriceDecimals:   cfg.PriceDecimals,
		AmountDecimals:  cfg.AmountDecimals,
	}
}

// BuyParams extracts the mirror-side planning parameters. The caller passes
// the inverted reference price; offsets and steps apply identically, and the
// stop-loss band inverts to [1/max, 1/min] in mirror quote terms.
func BuyParams(cfg *config.LadderConfig) Params {
	p := SellParams(cfg)
	p.Leverage = decimal.NewFromFloat(cfg.LeverageAmountBuy)
	p.MinPrice = tradingutils.InvertPrice(decimal.NewFromFloat(cfg.MaxStopPrice))
	p.MaxPrice = tradingutils.InvertPrice(decimal.NewFromFloat(cfg.MinStopPrice))
	return p
}

// PerRungCap is the size of one full rung. Resting offers above this cap are
// oversized for the configuration and get replaced.
func PerRungCap(p Params) decimal.Decimal {
	if p.RungCount <= 0 {
		return decimal.Zero
	}
	return tradingutils.RoundAmount(
		p.Leverage.Div(decimal.NewFromInt(int64(p.RungCount))),
		p.AmountDecimals,
	)
}

// Plan turns (reference price, params, available balance) into the ordered
// list of desired rungs, nearest rung first, clipped to what the balance can
// fund. When the balance cannot fund the full ladder the far end is dropped:
// priority goes to the rungs closest to the reference price. Rungs priced
// outside [MinPrice, MaxPrice] are dropped without consuming budget; a
// reference price near the band edge yields a shorter ladder, never an offer
// past the edge.
func Plan(refPrice decimal.Decimal, p Params, available decimal.Decimal) []core.DesiredRung {
	if p.RungCount <= 0 || refPrice.LessThanOrEqual(decimal.Zero) || p.Leverage.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	amountPerRung := tradingutils.RoundAmount(
		p.Leverage.Div(decimal.NewFromInt(int64(p.RungCount))),
		p.AmountDecimals,
	)
	if amountPerRung.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	minRung := amountPerRung.Mul(p.MinRungFraction)

	offset := tradingutils.PercentToFraction(p.OffsetPercent)
	step := tradingutils.PercentToFraction(p.StepPercent)
	prices := tradingutils.LadderPrices(refPrice, offset, step, p.RungCount)

	budget := decimal.Min(p.Leverage, available)
	remaining := budget

	rungs := make([]core.DesiredRung, 0, p.RungCount)
	for _, price := range prices {
		rounded := tradingutils.RoundPrice(price, p.PriceDecimals)
		if rounded.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if p.MinPrice.IsPositive() && rounded.LessThan(p.MinPrice) {
			continue
		}
		if p.MaxPrice.IsPositive() && rounded.GreaterThan(p.MaxPrice) {
			continue
		}

		if remaining.GreaterThanOrEqual(amountPerRung) {
			rungs = append(rungs, core.DesiredRung{Price: rounded, Amount: amountPerRung})
			remaining = remaining.Sub(amountPerRung)
			continue
		}

		// Last affordable rung: keep the remainder as a partial rung when it
		// still clears the minimum, otherwise drop it.
		partial := tradingutils.RoundAmount(remaining, p.AmountDecimals)
		if partial.GreaterThan(decimal.Zero) && partial.GreaterThanOrEqual(minRung) {
			rungs = append(rungs, core.DesiredRung{Price: rounded, Amount: partial})
		}
		break
	}

	return rungs
}
