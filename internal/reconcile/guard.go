package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
)

// CheckStopLoss enforces the [min,max] stop-loss band. It runs before any
// planning: a reference price outside the band must never drive new offers
// onto the book, not even transiently.
func CheckStopLoss(refPrice decimal.Decimal, cfg *config.LadderConfig) core.GuardDecision {
	minStop := decimal.NewFromFloat(cfg.MinStopPrice)
	maxStop := decimal.NewFromFloat(cfg.MaxStopPrice)

	if refPrice.LessThan(minStop) {
		return core.GuardDecision{
			Proceed: false,
			Reason:  fmt.Sprintf("reference price %s below stop-loss floor %s", refPrice, minStop),
			Price:   refPrice,
		}
	}
	if refPrice.GreaterThan(maxStop) {
		return core.GuardDecision{
			Proceed: false,
			Reason:  fmt.Sprintf("reference price %s above stop-loss ceiling %s", refPrice, maxStop),
			Price:   refPrice,
		}
	}

	return core.GuardDecision{Proceed: true, Price: refPrice}
}
