package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	apphttp "ladder_maker/pkg/http"
)

// RemoteSigner asks an external signing service to sign submission units.
// The engine never holds key material; the service authenticates callers with
// an API key and decides per policy whether to sign.
type RemoteSigner struct {
	http   *apphttp.Client
	logger core.ILogger
}

func NewRemoteSigner(cfg config.SignerConfig, logger core.ILogger) *RemoteSigner {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &RemoteSigner{
		http:   apphttp.NewClient(cfg.BaseURL, timeout, apiKeySigner{key: cfg.APIKey}),
		logger: logger.WithField("component", "remote_signer"),
	}
}

type signOperation struct {
	Type    string `json:"type"`
	OfferID int64  `json:"offer_id,omitempty"`
	Selling string `json:"selling,omitempty"`
	Buying  string `json:"buying,omitempty"`
	Price   string `json:"price,omitempty"`
	Amount  string `json:"amount,omitempty"`
}

type signRequest struct {
	Account    string          `json:"account"`
	Sequence   int64           `json:"sequence"`
	Operations []signOperation `json:"operations"`
	ValidUntil int64           `json:"valid_until"` // unix seconds
	Memo       string          `json:"memo,omitempty"`
}

type signResponse struct {
	SignedTx string `json:"signed_tx"` // base64
}

// Sign serializes the unit, posts it to the signing service, and returns the
// signed transaction bytes. Signing is idempotent so the retrying pipeline
// applies.
func (s *RemoteSigner) Sign(ctx context.Context, unit *core.SubmissionUnit) ([]byte, error) {
	req := signRequest{
		Account:    unit.Account,
		Sequence:   unit.Sequence,
		Operations: make([]signOperation, 0, len(unit.Operations)),
		ValidUntil: unit.ValidUntil.Unix(),
		Memo:       unit.Memo,
	}
	for _, op := range unit.Operations {
		switch op.Type {
		case core.OpCancelOffer:
			req.Operations = append(req.Operations, signOperation{
				Type:    "cancel_offer",
				OfferID: op.OfferID,
			})
		case core.OpCreateOffer:
			req.Operations = append(req.Operations, signOperation{
				Type:    "create_offer",
				Selling: op.Selling.String(),
				Buying:  op.Buying.String(),
				Price:   op.Price.String(),
				Amount:  op.Amount.String(),
			})
		}
	}

	body, err := s.http.Post(ctx, "/sign", req)
	if err != nil {
		return nil, fmt.Errorf("signing service: %w", err)
	}

	var resp signResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode signing response: %w", err)
	}
	tx, err := base64.StdEncoding.DecodeString(resp.SignedTx)
	if err != nil {
		return nil, fmt.Errorf("decode signed transaction: %w", err)
	}
	if len(tx) == 0 {
		return nil, fmt.Errorf("signing service returned empty transaction")
	}
	return tx, nil
}

var _ core.Signer = (*RemoteSigner)(nil)
