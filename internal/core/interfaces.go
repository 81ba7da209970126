// Package core defines the shared types and interfaces of the ladder engine.
package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerGateway abstracts the ledger network's query and submission API.
// All methods are blocking network calls and must honor ctx deadlines.
type LedgerGateway interface {
	// GetAccount loads the account's identity and current sequence counter.
	GetAccount(ctx context.Context, accountID string) (*TradingAccount, error)

	// GetOffers returns every offer currently resting for the account.
	GetOffers(ctx context.Context, accountID string) ([]Offer, error)

	// GetBalances returns the account's available balance per asset.
	GetBalances(ctx context.Context, accountID string) (map[Asset]decimal.Decimal, error)

	// GetReferencePrice returns the market reference price for the pair,
	// quoted as units of pair.Buying per unit of pair.Selling.
	GetReferencePrice(ctx context.Context, pair AssetPair) (decimal.Decimal, error)

	// Submit posts a signed transaction and reports the ledger's verdict.
	Submit(ctx context.Context, signedTx []byte) (*SubmissionResult, error)
}

// Signer turns an unsigned submission unit into signed transaction bytes.
// Key custody is entirely external to the engine.
type Signer interface {
	Sign(ctx context.Context, unit *SubmissionUnit) ([]byte, error)
}

// PriceSource supplies reference prices. The gateway is one source; a
// streaming market data feed is another.
type PriceSource interface {
	GetReferencePrice(ctx context.Context, pair AssetPair) (decimal.Decimal, error)
}

// IAlerter is the fire-and-forget alerting collaborator. Implementations
// must never block the reconciliation path.
type IAlerter interface {
	Alert(ctx context.Context, title, message string, severity AlertSeverity, fields map[string]string)
}

// IReportStore persists cycle reports for operator introspection.
type IReportStore interface {
	SaveReport(ctx context.Context, report *CycleReport) error
	LoadRecent(ctx context.Context, limit int) ([]*CycleReport, error)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
