// Package submit compiles reconciliation plans into atomic submission units
// and owns the per-account sequence discipline.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ladder_maker/internal/core"
	apperrors "ladder_maker/pkg/errors"
	"ladder_maker/pkg/telemetry"
)

// BatchBuilder groups every cancel and create for one account into a single
// submission unit bound to one sequence number. The ledger applies the unit
// atomically; the builder adds a bounded validity window so a unit stuck in
// the network cannot block indefinitely.
type BatchBuilder struct {
	gateway  core.LedgerGateway
	signer   core.Signer
	validity time.Duration
	logger   core.ILogger
	metrics  *telemetry.MetricsHolder
}

func NewBatchBuilder(gateway core.LedgerGateway, signer core.Signer, validity time.Duration, logger core.ILogger) *BatchBuilder {
	return &BatchBuilder{
		gateway:  gateway,
		signer:   signer,
		validity: validity,
		logger:   logger.WithField("component", "batch_builder"),
		metrics:  telemetry.GetGlobalMetrics(),
	}
}

// Build compiles the account's plans for this cycle into one unit. Cancels
// are emitted before creates so the executor never holds two live offers at
// the same price level; duplicate cancel ids across plans collapse to one.
func (b *BatchBuilder) Build(account *core.TradingAccount, plans []core.ReconciliationPlan) *core.SubmissionUnit {
	unit := &core.SubmissionUnit{
		Account:    account.ID,
		Sequence:   account.Sequence + 1,
		ValidUntil: time.Now().Add(b.validity),
		Memo:       uuid.NewString()[:8],
	}

	seen := make(map[int64]bool)
	for _, plan := range plans {
		for _, id := range plan.ToCancel {
			if seen[id] {
				continue
			}
			seen[id] = true
			unit.Operations = append(unit.Operations, core.Operation{
				Type:    core.OpCancelOffer,
				OfferID: id,
			})
		}
	}
	for _, plan := range plans {
		for _, rung := range plan.ToCreate {
			unit.Operations = append(unit.Operations, core.Operation{
				Type:    core.OpCreateOffer,
				Selling: plan.Pair.Selling,
				Buying:  plan.Pair.Buying,
				Price:   rung.Price,
				Amount:  rung.Amount,
			})
		}
	}

	return unit
}

// Submit signs and posts the unit. A stale sequence is recovered exactly
// once: reload the account, rebind the same operations to the fresh sequence,
// and retry. A second stale sequence surfaces as a failure; blind
// resubmission can duplicate operations against stale assumptions about the
// current offers.
func (b *BatchBuilder) Submit(ctx context.Context, unit *core.SubmissionUnit) (*core.SubmissionResult, error) {
	result, err := b.signAndPost(ctx, unit)
	if err == nil {
		return result, nil
	}

	if !errors.Is(err, apperrors.ErrStaleSequence) {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSubmissionFailed, err)
	}

	b.logger.Warn("Stale sequence, reloading account for one retry",
		"account", unit.Account, "sequence", unit.Sequence)
	b.metrics.SequenceRetries.Add(ctx, 1)

	account, loadErr := b.gateway.GetAccount(ctx, unit.Account)
	if loadErr != nil {
		return nil, fmt.Errorf("%w: account reload after stale sequence: %v", apperrors.ErrSubmissionFailed, loadErr)
	}

	retry := &core.SubmissionUnit{
		Account:    unit.Account,
		Sequence:   account.Sequence + 1,
		Operations: unit.Operations,
		ValidUntil: time.Now().Add(b.validity),
		Memo:       unit.Memo,
	}

	result, err = b.signAndPost(ctx, retry)
	if err != nil {
		if errors.Is(err, apperrors.ErrStaleSequence) {
			return nil, fmt.Errorf("%w: sequence stale twice for account %s", apperrors.ErrStaleSequence, unit.Account)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSubmissionFailed, err)
	}
	return result, nil
}

func (b *BatchBuilder) signAndPost(ctx context.Context, unit *core.SubmissionUnit) (*core.SubmissionResult, error) {
	signed, err := b.signer.Sign(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	result, err := b.gateway.Submit(ctx, signed)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		if result.Err != nil {
			return nil, result.Err
		}
		return nil, apperrors.ErrSubmissionFailed
	}

	b.logger.Info("Submission accepted",
		"account", unit.Account,
		"sequence", unit.Sequence,
		"operations", len(unit.Operations),
		"hash", result.Hash)
	return result, nil
}
