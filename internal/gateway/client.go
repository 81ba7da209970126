// Package gateway implements the ledger network API client. It is the only
// package that speaks the wire format; everything above it works with core
// types.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	apperrors "ladder_maker/pkg/errors"
	apphttp "ladder_maker/pkg/http"
)

// Client talks to the ledger's REST API. Reads ride the retrying pipeline;
// transaction submission goes through PostOnce so an ambiguous failure is
// never blindly replayed, and through a rate limiter so a busy cycle cannot
// flood the submission endpoint.
type Client struct {
	http    *apphttp.Client
	limiter *rate.Limiter
	logger  core.ILogger
}

type apiKeySigner struct {
	key config.Secret
}

func (s apiKeySigner) SignRequest(req *http.Request) error {
	if s.key.Reveal() != "" {
		req.Header.Set("X-Api-Key", s.key.Reveal())
	}
	return nil
}

func NewClient(cfg config.LedgerConfig, logger core.ILogger) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Limit(cfg.SubmitRateLimit)
	if cfg.SubmitRateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.SubmitBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		http:    apphttp.NewClient(cfg.BaseURL, timeout, apiKeySigner{key: cfg.APIKey}),
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithField("component", "ledger_gateway"),
	}
}

type accountResponse struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*core.TradingAccount, error) {
	body, err := c.http.Get(ctx, "/accounts/"+url.PathEscape(accountID), nil)
	if err != nil {
		return nil, c.mapError(err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	seq, err := strconv.ParseInt(resp.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse sequence '%s': %w", resp.Sequence, err)
	}
	return &core.TradingAccount{ID: resp.ID, Sequence: seq}, nil
}

type offerRecord struct {
	ID      string    `json:"id"`
	Selling assetJSON `json:"selling"`
	Buying  assetJSON `json:"buying"`
	Price   string    `json:"price"`
	Amount  string    `json:"amount"`
}

type offersResponse struct {
	Offers []offerRecord `json:"offers"`
	Cursor string        `json:"cursor"`
}

// GetOffers pages through the account's resting offers until the API returns
// an empty page.
func (c *Client) GetOffers(ctx context.Context, accountID string) ([]core.Offer, error) {
	var out []core.Offer
	cursor := ""
	for {
		params := map[string]string{"limit": "200"}
		if cursor != "" {
			params["cursor"] = cursor
		}
		body, err := c.http.Get(ctx, "/accounts/"+url.PathEscape(accountID)+"/offers", params)
		if err != nil {
			return nil, c.mapError(err)
		}

		var resp offersResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode offers: %w", err)
		}
		for _, rec := range resp.Offers {
			offer, err := rec.toOffer()
			if err != nil {
				return nil, err
			}
			out = append(out, offer)
		}
		if len(resp.Offers) == 0 || resp.Cursor == "" {
			return out, nil
		}
		cursor = resp.Cursor
	}
}

func (r offerRecord) toOffer() (core.Offer, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return core.Offer{}, fmt.Errorf("parse offer id '%s': %w", r.ID, err)
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return core.Offer{}, fmt.Errorf("parse offer price '%s': %w", r.Price, err)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.Offer{}, fmt.Errorf("parse offer amount '%s': %w", r.Amount, err)
	}
	return core.Offer{
		ID:      id,
		Selling: r.Selling.toAsset(),
		Buying:  r.Buying.toAsset(),
		Price:   price,
		Amount:  amount,
	}, nil
}

type balanceRecord struct {
	Asset     assetJSON `json:"asset"`
	Available string    `json:"available"`
}

type balancesResponse struct {
	Balances []balanceRecord `json:"balances"`
}

func (c *Client) GetBalances(ctx context.Context, accountID string) (map[core.Asset]decimal.Decimal, error) {
	body, err := c.http.Get(ctx, "/accounts/"+url.PathEscape(accountID)+"/balances", nil)
	if err != nil {
		return nil, c.mapError(err)
	}

	var resp balancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}
	out := make(map[core.Asset]decimal.Decimal, len(resp.Balances))
	for _, rec := range resp.Balances {
		avail, err := decimal.NewFromString(rec.Available)
		if err != nil {
			return nil, fmt.Errorf("parse balance '%s': %w", rec.Available, err)
		}
		out[rec.Asset.toAsset()] = avail
	}
	return out, nil
}

type priceResponse struct {
	Price string `json:"price"`
}

func (c *Client) GetReferencePrice(ctx context.Context, pair core.AssetPair) (decimal.Decimal, error) {
	params := map[string]string{
		"selling": assetParam(pair.Selling),
		"buying":  assetParam(pair.Buying),
	}
	body, err := c.http.Get(ctx, "/prices/mid", params)
	if err != nil {
		return decimal.Zero, c.mapError(err)
	}

	var resp priceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("decode price: %w", err)
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price '%s': %w", resp.Price, err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: non-positive reference price %s for %s",
			apperrors.ErrPriceOutOfBounds, price, pair)
	}
	return price, nil
}

type submitRequest struct {
	Tx string `json:"tx"`
}

type submitResponse struct {
	Successful bool   `json:"successful"`
	Hash       string `json:"hash"`
	ResultCode string `json:"result_code"`
}

func (c *Client) Submit(ctx context.Context, signedTx []byte) (*core.SubmissionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.http.PostOnce(ctx, "/transactions", submitRequest{
		Tx: base64.StdEncoding.EncodeToString(signedTx),
	})
	if err != nil {
		// Rejections come back as API errors with a result code; surface the
		// code as a typed sentinel so the submit layer can react.
		var apiErr *apphttp.APIError
		if errors.As(err, &apiErr) {
			var resp submitResponse
			if jsonErr := json.Unmarshal(apiErr.Body, &resp); jsonErr == nil && resp.ResultCode != "" {
				return nil, mapResultCode(resp.ResultCode)
			}
		}
		return nil, c.mapError(err)
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode submission result: %w", err)
	}
	if !resp.Successful {
		return nil, mapResultCode(resp.ResultCode)
	}
	return &core.SubmissionResult{Success: true, Hash: resp.Hash}, nil
}

func mapResultCode(code string) error {
	switch code {
	case "tx_bad_seq":
		return fmt.Errorf("result code %s: %w", code, apperrors.ErrStaleSequence)
	case "op_underfunded":
		return fmt.Errorf("result code %s: %w", code, apperrors.ErrInsufficientBalance)
	case "tx_malformed", "op_malformed":
		return fmt.Errorf("result code %s: %w", code, apperrors.ErrMalformedTx)
	default:
		return fmt.Errorf("result code %s: %w", code, apperrors.ErrSubmissionFailed)
	}
}

// mapError translates transport failures into the shared taxonomy.
func (c *Client) mapError(err error) error {
	var apiErr *apphttp.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, apiErr.Error())
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", apperrors.ErrRateLimitExceeded, apiErr.Error())
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s", apperrors.ErrLedgerMaintenance, apiErr.Error())
		}
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
}

type assetJSON struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer,omitempty"`
}

func (a assetJSON) toAsset() core.Asset {
	if a.Issuer == "" {
		return core.NativeAsset()
	}
	return core.Asset{Code: a.Code, Issuer: a.Issuer}
}

func assetParam(a core.Asset) string {
	if a.IsNative() {
		return "native"
	}
	return a.Code + ":" + a.Issuer
}
