// Package orchestrator drives one reconciliation cycle per scheduled
// (account, pair) configuration and fans the work out across a pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	"ladder_maker/internal/ladder"
	"ladder_maker/internal/reconcile"
	"ladder_maker/internal/submit"
	"ladder_maker/pkg/concurrency"
	apperrors "ladder_maker/pkg/errors"
	"ladder_maker/pkg/telemetry"
	"ladder_maker/pkg/tradingutils"
)

// Orchestrator owns one cycle of the control loop: refresh configuration,
// process every scheduled configuration concurrently, and aggregate failures
// without letting one configuration block another.
type Orchestrator struct {
	gateway       core.LedgerGateway
	prices        core.PriceSource
	store         config.Store
	alerter       core.IAlerter
	batcher       *submit.BatchBuilder
	accounts      *submit.AccountRegistry
	pool          *concurrency.WorkerPool
	logger        core.ILogger
	metrics       *telemetry.MetricsHolder
	configTimeout time.Duration
}

func New(
	gateway core.LedgerGateway,
	prices core.PriceSource,
	store config.Store,
	alerter core.IAlerter,
	batcher *submit.BatchBuilder,
	pool *concurrency.WorkerPool,
	configTimeout time.Duration,
	logger core.ILogger,
) *Orchestrator {
	return &Orchestrator{
		gateway:       gateway,
		prices:        prices,
		store:         store,
		alerter:       alerter,
		batcher:       batcher,
		accounts:      submit.NewAccountRegistry(),
		pool:          pool,
		logger:        logger.WithField("component", "orchestrator"),
		metrics:       telemetry.GetGlobalMetrics(),
		configTimeout: configTimeout,
	}
}

// RunCycle processes every scheduled configuration once. Configurations are
// independent except when they share an account, which the submit layer
// serializes; everything else runs concurrently on the pool.
func (o *Orchestrator) RunCycle(ctx context.Context) *core.CycleReport {
	report := &core.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
	}

	if err := o.store.Reload(); err != nil {
		// Keep driving the last good snapshot; stale configuration still
		// beats leaving offers unmanaged.
		o.logger.Warn("Configuration reload failed, using previous snapshot", "error", err)
	}

	entries := o.store.Schedule()
	o.logger.Info("Starting reconciliation cycle", "cycle_id", report.CycleID, "configurations", len(entries))

	results := make([]core.ConfigResult, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		i, entry := i, entry
		wg.Add(1)
		if err := o.pool.Submit(func() {
			defer wg.Done()
			results[i] = o.runConfig(ctx, entry)
		}); err != nil {
			wg.Done()
			results[i] = core.ConfigResult{Name: entry.Name, Account: entry.Account, Pair: entry.Pair.ToPair(), Err: err}
		}
	}
	wg.Wait()

	report.Results = results
	report.Elapsed = time.Since(report.StartedAt)

	o.metrics.CyclesTotal.Add(ctx, 1)
	o.metrics.CycleDuration.Record(ctx, float64(report.Elapsed.Milliseconds()))
	for _, res := range report.Results {
		if res.Err != nil {
			o.metrics.CycleFailuresTotal.Add(ctx, 1)
			o.logger.Error("Configuration failed this cycle",
				"cycle_id", report.CycleID, "name", res.Name, "error", res.Err)
		}
	}

	o.logger.Info("Cycle complete",
		"cycle_id", report.CycleID,
		"elapsed", report.Elapsed,
		"failures", len(report.Failures()))
	return report
}

// runConfig executes one (account, pair, mirror pair) configuration under
// its own deadline. Every failure is contained here.
func (o *Orchestrator) runConfig(parent context.Context, entry config.ScheduleEntry) (res core.ConfigResult) {
	start := time.Now()
	pair := entry.Pair.ToPair()
	res = core.ConfigResult{Name: entry.Name, Account: entry.Account, Pair: pair}
	defer func() { res.Elapsed = time.Since(start) }()

	ctx, cancel := context.WithTimeout(parent, o.configTimeout)
	defer cancel()
	defer func() {
		if res.Err != nil && errors.Is(res.Err, context.DeadlineExceeded) {
			res.Err = fmt.Errorf("%w after %s: %v", apperrors.ErrTimeout, o.configTimeout, res.Err)
		}
	}()

	logger := o.logger.WithField("config", entry.Name)

	// Offers are read fresh every cycle: fills and external cancellations
	// can change them underneath the engine.
	offers, err := o.gateway.GetOffers(ctx, entry.Account)
	if err != nil {
		res.Err = err
		return res
	}

	cfg, cfgErr := o.store.Ladder(entry.Name)
	if cfgErr != nil {
		// A scheduled configuration with no ladder entry gets the stop-loss
		// treatment: leaving stale offers live with no active management is
		// strictly worse than flattening.
		logger.Error("Configuration missing or malformed, flattening", "error", cfgErr)
		o.alerter.Alert(ctx, "Configuration missing",
			"Flattening all offers for unmanaged pair "+pair.String(),
			core.SeverityError,
			map[string]string{"config": entry.Name, "account": entry.Account, "pair": pair.String()})
		res.Err = cfgErr
		res.Flattened = true
		o.flatten(ctx, entry.Account, pair, offers, &res)
		return res
	}

	refPrice, err := o.prices.GetReferencePrice(ctx, pair)
	if err != nil {
		res.Err = err
		return res
	}
	refFloat, _ := refPrice.Float64()
	o.metrics.SetReferencePrice(pair.String(), refFloat)

	if guard := reconcile.CheckStopLoss(refPrice, cfg); !guard.Proceed {
		logger.Warn("Stop-loss breach, flattening", "reason", guard.Reason)
		o.metrics.StopLossTrips.Add(ctx, 1)
		o.alerter.Alert(ctx, "Stop-loss breach", guard.Reason, core.SeverityCritical,
			map[string]string{"config": entry.Name, "pair": pair.String(), "price": guard.Price.String()})
		res.Flattened = true
		o.flatten(ctx, entry.Account, pair, offers, &res)
		return res
	}

	balances, err := o.gateway.GetBalances(ctx, entry.Account)
	if err != nil {
		res.Err = err
		return res
	}

	sellParams := ladder.SellParams(cfg)
	buyParams := ladder.BuyParams(cfg)
	forwardRungs := ladder.Plan(refPrice, sellParams, balances[pair.Selling])
	mirrorRungs := ladder.Plan(tradingutils.InvertPrice(refPrice), buyParams, balances[pair.Buying])

	tol := reconcile.Tolerances{
		Band:       tradingutils.PercentToFraction(decimal.NewFromFloat(cfg.TolerancePercent)),
		MirrorBand: tradingutils.PercentToFraction(decimal.NewFromFloat(cfg.MirrorTolerancePercent)),
	}

	forwardPlan := reconcile.Reconcile(forwardRungs, offers, pair, tol, ladder.PerRungCap(sellParams))
	mirrorPlan := reconcile.Reconcile(mirrorRungs, offers, pair.Mirror(), tol, ladder.PerRungCap(buyParams))

	if forwardPlan.IsEmpty() && mirrorPlan.IsEmpty() {
		logger.Debug("Ladder already in tolerance, no-op cycle")
		o.metrics.SetRestingOffers(pair.String(), int64(countPairOffers(offers, pair)))
		return res
	}

	o.executePlans(ctx, entry.Account, []core.ReconciliationPlan{forwardPlan, mirrorPlan}, &res)
	if res.Err == nil {
		o.metrics.SetRestingOffers(pair.String(),
			int64(countPairOffers(offers, pair)-res.Cancelled+res.Created))
	}
	return res
}

// flatten cancels every resting offer on both sides of the pair.
func (o *Orchestrator) flatten(ctx context.Context, account string, pair core.AssetPair, offers []core.Offer, res *core.ConfigResult) {
	plan := reconcile.CancelAllPlan(offers, pair)
	if plan.IsEmpty() {
		return
	}
	o.executePlans(ctx, account, []core.ReconciliationPlan{plan}, res)
	if res.Err == nil {
		o.metrics.SetRestingOffers(pair.String(), 0)
	}
}

// executePlans merges the plans into one submission unit and posts it under
// the account's lock.
func (o *Orchestrator) executePlans(ctx context.Context, accountID string, plans []core.ReconciliationPlan, res *core.ConfigResult) {
	release := o.accounts.Acquire(accountID)
	defer release()

	account, err := o.gateway.GetAccount(ctx, accountID)
	if err != nil {
		res.Err = err
		return
	}

	unit := o.batcher.Build(account, plans)
	if len(unit.Operations) == 0 {
		return
	}

	if _, err := o.batcher.Submit(ctx, unit); err != nil {
		res.Err = err
		o.alerter.Alert(ctx, "Submission failed",
			"Submission unit rejected for account "+accountID,
			core.SeverityError,
			map[string]string{"account": accountID, "error": err.Error()})
		return
	}

	for _, op := range unit.Operations {
		switch op.Type {
		case core.OpCancelOffer:
			res.Cancelled++
		case core.OpCreateOffer:
			res.Created++
		}
	}
	o.metrics.OffersCancelled.Add(ctx, int64(res.Cancelled))
	o.metrics.OffersCreated.Add(ctx, int64(res.Created))
}

func countPairOffers(offers []core.Offer, pair core.AssetPair) int {
	mirror := pair.Mirror()
	n := 0
	for _, o := range offers {
		if (o.Selling == pair.Selling && o.Buying == pair.Buying) ||
			(o.Selling == mirror.Selling && o.Buying == mirror.Buying) {
			n++
		}
	}
	return n
}
