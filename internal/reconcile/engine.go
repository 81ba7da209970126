// Package reconcile diffs the desired ladder against the offers currently
// resting on the book and enforces the stop-loss band.
package reconcile

import (
	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
	"ladder_maker/pkg/tradingutils"
)

// Tolerances are the fractional tolerance bands used when matching offers.
// Band matches same-side offers against desired rungs; MirrorBand widens the
// mirror-side crossing threshold. The two are configured independently.
type Tolerances struct {
	Band       decimal.Decimal
	MirrorBand decimal.Decimal
}

// Reconcile computes the plan that moves the account's resting offers on
// pair toward the desired ladder. The plan is pure: nothing is executed
// here. Cancellations always precede creations when the plan is compiled
// into operations, so an in-order executor never holds two live offers at
// the same price level.
//
// Rules, in order:
//   - a same-side offer priced outside the desired ladder's price range
//     (widened by Band) is cancelled
//   - a same-side offer whose amount exceeds perRungCap is cancelled
//   - a desired rung already satisfied by a surviving same-side offer within
//     Band of its price emits nothing; every offer satisfies at most one rung
//   - every unsatisfied rung is created
//   - a mirror-side offer that would trade through the ladder's best rung
//     (inverse price comparison, widened by MirrorBand) is cancelled
func Reconcile(desired []core.DesiredRung, current []core.Offer, pair core.AssetPair, tol Tolerances, perRungCap decimal.Decimal) core.ReconciliationPlan {
	plan := core.ReconciliationPlan{Pair: pair}

	var forward, mirror []core.Offer
	mirrorPair := pair.Mirror()
	for _, o := range current {
		switch {
		case o.Selling == pair.Selling && o.Buying == pair.Buying:
			forward = append(forward, o)
		case o.Selling == mirrorPair.Selling && o.Buying == mirrorPair.Buying:
			mirror = append(mirror, o)
		}
	}

	if len(desired) == 0 {
		// No fundable rungs: retire the whole side.
		for _, o := range forward {
			plan.ToCancel = append(plan.ToCancel, o.ID)
		}
		return plan
	}

	one := decimal.NewFromInt(1)
	minPrice := desired[0].Price
	maxPrice := desired[0].Price
	for _, r := range desired[1:] {
		if r.Price.LessThan(minPrice) {
			minPrice = r.Price
		}
		if r.Price.GreaterThan(maxPrice) {
			maxPrice = r.Price
		}
	}
	low := minPrice.Mul(one.Sub(tol.Band))
	high := maxPrice.Mul(one.Add(tol.Band))

	cancelled := make(map[int64]bool)
	for _, o := range forward {
		if o.Price.LessThan(low) || o.Price.GreaterThan(high) || o.Amount.GreaterThan(perRungCap) {
			plan.ToCancel = append(plan.ToCancel, o.ID)
			cancelled[o.ID] = true
		}
	}

	// Tolerance-band matching: a rung close enough to a surviving offer is
	// already satisfied, which is what keeps price noise from churning the
	// book every cycle.
	matched := make(map[int64]bool)
	for _, rung := range desired {
		satisfied := false
		for _, o := range forward {
			if cancelled[o.ID] || matched[o.ID] {
				continue
			}
			if tradingutils.WithinBand(o.Price, rung.Price, tol.Band) {
				matched[o.ID] = true
				satisfied = true
				break
			}
		}
		if !satisfied {
			plan.ToCreate = append(plan.ToCreate, rung)
		}
	}

	// A mirror-side offer bidding at or above the ladder's best price would
	// let the account trade through its own ladder.
	crossLimit := tradingutils.InvertPrice(minPrice).Mul(one.Add(tol.MirrorBand))
	for _, o := range mirror {
		if o.Price.LessThanOrEqual(crossLimit) {
			plan.ToCancel = append(plan.ToCancel, o.ID)
		}
	}

	return plan
}

// CancelAllPlan returns the plan that retires every resting offer on both
// sides of the pair. Used on stop-loss breach and missing configuration.
func CancelAllPlan(current []core.Offer, pair core.AssetPair) core.ReconciliationPlan {
	plan := core.ReconciliationPlan{Pair: pair}
	mirrorPair := pair.Mirror()
	for _, o := range current {
		onPair := o.Selling == pair.Selling && o.Buying == pair.Buying
		onMirror := o.Selling == mirrorPair.Selling && o.Buying == mirrorPair.Buying
		if onPair || onMirror {
			plan.ToCancel = append(plan.ToCancel, o.ID)
		}
	}
	return plan
}
