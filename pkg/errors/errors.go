package apperrors

import "errors"

// Engine error taxonomy. Matched with errors.Is throughout.
var (
	// ErrInsufficientBalance is not fatal; the planner truncates the ladder.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPriceOutOfBounds marks a reference price outside the stop-loss band.
	ErrPriceOutOfBounds = errors.New("reference price out of bounds")

	// ErrStaleSequence means the ledger rejected the unit's sequence number
	// because another process moved the account's counter.
	ErrStaleSequence = errors.New("stale sequence")

	// ErrSubmissionFailed is a final ledger rejection or network failure of
	// a submission unit.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrConfigMissing marks a scheduled configuration absent from the store.
	ErrConfigMissing = errors.New("configuration missing")

	// ErrTimeout marks a configuration that ran past its per-cycle deadline.
	// The next cycle recomputes from fresh state; nothing is retried.
	ErrTimeout = errors.New("configuration deadline exceeded")
)

// Transport-level errors surfaced by the gateway.
var (
	ErrNetwork           = errors.New("network error")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrLedgerMaintenance = errors.New("ledger maintenance")
	ErrAccountNotFound   = errors.New("account not found")
	ErrMalformedTx       = errors.New("malformed transaction")
)
