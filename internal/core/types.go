package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Asset identifies a tradeable instrument on the ledger. The native unit
// carries an empty issuer. Equality is by value.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset returns the ledger's native unit.
func NativeAsset() Asset {
	return Asset{Code: "native"}
}

// IsNative reports whether the asset is the ledger's native unit.
func (a Asset) IsNative() bool {
	return a.Issuer == "" && (a.Code == "" || a.Code == "native")
}

func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return fmt.Sprintf("%s:%s", a.Code, a.Issuer)
}

// AssetPair is an ordered (selling, buying) pair. A ladder is always planned
// for one direction; the mirror direction swaps the assets and inverts prices.
type AssetPair struct {
	Selling Asset
	Buying  Asset
}

// Mirror returns the reverse direction of the pair.
func (p AssetPair) Mirror() AssetPair {
	return AssetPair{Selling: p.Buying, Buying: p.Selling}
}

func (p AssetPair) String() string {
	return fmt.Sprintf("%s/%s", p.Selling, p.Buying)
}

// TradingAccount is an account identifier plus its current sequence counter.
// The sequence is owned exclusively by the submission step for the duration
// of one reconciliation cycle.
type TradingAccount struct {
	ID       string
	Sequence int64
}

// Offer is a limit offer currently resting on the order book. Offers are
// read fresh at the start of every cycle and never cached across cycles.
type Offer struct {
	ID      int64
	Selling Asset
	Buying  Asset
	Price   decimal.Decimal // units of Buying per unit of Selling
	Amount  decimal.Decimal // amount of Selling on offer
}

// DesiredRung is one price/amount level of a planned ladder. Recomputed
// every cycle, never persisted.
type DesiredRung struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// ReconciliationPlan is the pure diff between the desired ladder and the
// offers currently resting on the book. It has no side effects until a batch
// builder executes it; cancels are always applied before creates.
type ReconciliationPlan struct {
	Pair     AssetPair
	ToCancel []int64
	ToCreate []DesiredRung
}

// IsEmpty reports whether executing the plan would be a no-op.
func (p ReconciliationPlan) IsEmpty() bool {
	return len(p.ToCancel) == 0 && len(p.ToCreate) == 0
}

// OpType distinguishes the two ledger operations a plan compiles to.
type OpType int

const (
	OpCancelOffer OpType = iota
	OpCreateOffer
)

func (t OpType) String() string {
	switch t {
	case OpCancelOffer:
		return "CANCEL"
	case OpCreateOffer:
		return "CREATE"
	default:
		return "UNKNOWN"
	}
}

// Operation is a single offer operation inside a submission unit.
type Operation struct {
	Type    OpType
	OfferID int64 // cancel only
	Selling Asset
	Buying  Asset
	Price   decimal.Decimal
	Amount  decimal.Decimal
}

// SubmissionUnit is one atomic batch of operations for one account, bound to
// one sequence number and a bounded validity window. Either every operation
// applies or none do; atomicity is the ledger's native transaction semantics.
type SubmissionUnit struct {
	Account    string
	Sequence   int64
	Operations []Operation
	ValidUntil time.Time
	Memo       string
}

// SubmissionResult reports the ledger's verdict on a submission unit.
type SubmissionResult struct {
	Success bool
	Hash    string
	Err     error
}

// GuardDecision is the stop-loss verdict for one cycle.
type GuardDecision struct {
	Proceed bool
	Reason  string
	Price   decimal.Decimal
}

// ConfigResult records the outcome of one (account, pair) configuration
// within a cycle.
type ConfigResult struct {
	Name      string
	Account   string
	Pair      AssetPair
	Cancelled int
	Created   int
	Flattened bool
	Err       error
	Elapsed   time.Duration
}

// CycleReport aggregates per-configuration outcomes for one orchestrator
// cycle. Failures are contained per configuration; the report carries them
// all.
type CycleReport struct {
	CycleID   string
	StartedAt time.Time
	Elapsed   time.Duration
	Results   []ConfigResult
}

// Failures returns the results that ended in error.
func (r *CycleReport) Failures() []ConfigResult {
	var out []ConfigResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// AlertSeverity classifies alerts raised to the alerting collaborator.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityError    AlertSeverity = "ERROR"
	SeverityCritical AlertSeverity = "CRITICAL"
)
