package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	apperrors "ladder_maker/pkg/errors"
)

// MockLogger
type MockLogger struct {
	core.ILogger
}

func (l *MockLogger) Debug(msg string, fields ...interface{})               {}
func (l *MockLogger) Info(msg string, fields ...interface{})                {}
func (l *MockLogger) Warn(msg string, fields ...interface{})                {}
func (l *MockLogger) Error(msg string, fields ...interface{})               {}
func (l *MockLogger) Fatal(msg string, fields ...interface{})               {}
func (l *MockLogger) WithField(key string, value interface{}) core.ILogger  { return l }
func (l *MockLogger) WithFields(fields map[string]interface{}) core.ILogger { return l }

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LedgerConfig{
		BaseURL: srv.URL,
		APIKey:  config.Secret("test-key"),
	}, &MockLogger{})
}

func TestGetAccount(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/ACC_1", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ACC_1", "sequence": "42"})
	}))

	account, err := client.GetAccount(context.Background(), "ACC_1")
	require.NoError(t, err)
	assert.Equal(t, "ACC_1", account.ID)
	assert.Equal(t, int64(42), account.Sequence)
}

func TestGetAccount_NotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))

	_, err := client.GetAccount(context.Background(), "ACC_MISSING")
	assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
}

func TestGetOffers_Paging(t *testing.T) {
	t.Parallel()

	pages := map[string]offersResponse{
		"": {
			Offers: []offerRecord{{
				ID:      "1",
				Selling: assetJSON{Code: "TOK", Issuer: "I1"},
				Buying:  assetJSON{Code: "USD", Issuer: "I2"},
				Price:   "10.2",
				Amount:  "100",
			}},
			Cursor: "page2",
		},
		"page2": {
			Offers: []offerRecord{{
				ID:      "2",
				Selling: assetJSON{Code: "TOK", Issuer: "I1"},
				Buying:  assetJSON{Code: "USD", Issuer: "I2"},
				Price:   "10.3",
				Amount:  "50",
			}},
		},
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/ACC_1/offers", r.URL.Path)
		_ = json.NewEncoder(w).Encode(pages[r.URL.Query().Get("cursor")])
	}))

	offers, err := client.GetOffers(context.Background(), "ACC_1")
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, int64(1), offers[0].ID)
	assert.True(t, offers[0].Price.Equal(decimal.RequireFromString("10.2")))
	assert.Equal(t, int64(2), offers[1].ID)
	assert.Equal(t, "TOK", offers[1].Selling.Code)
}

func TestGetBalances(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(balancesResponse{Balances: []balanceRecord{
			{Asset: assetJSON{Code: "TOK", Issuer: "I1"}, Available: "199.5"},
			{Asset: assetJSON{Code: "native"}, Available: "12"},
		}})
	}))

	balances, err := client.GetBalances(context.Background(), "ACC_1")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.True(t, balances[core.Asset{Code: "TOK", Issuer: "I1"}].Equal(decimal.RequireFromString("199.5")))
	assert.True(t, balances[core.NativeAsset()].Equal(decimal.NewFromInt(12)))
}

func TestGetReferencePrice(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices/mid", r.URL.Path)
		assert.Equal(t, "TOK:I1", r.URL.Query().Get("selling"))
		assert.Equal(t, "USD:I2", r.URL.Query().Get("buying"))
		_ = json.NewEncoder(w).Encode(priceResponse{Price: "10.25"})
	}))

	pair := core.AssetPair{
		Selling: core.Asset{Code: "TOK", Issuer: "I1"},
		Buying:  core.Asset{Code: "USD", Issuer: "I2"},
	}
	price, err := client.GetReferencePrice(context.Background(), pair)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("10.25")))
}

func TestGetReferencePrice_RejectsNonPositive(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(priceResponse{Price: "0"})
	}))

	_, err := client.GetReferencePrice(context.Background(), core.AssetPair{
		Selling: core.Asset{Code: "TOK", Issuer: "I1"},
		Buying:  core.Asset{Code: "USD", Issuer: "I2"},
	})
	assert.ErrorIs(t, err, apperrors.ErrPriceOutOfBounds)
}

func TestSubmit_Success(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		var req submitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Tx)
		_ = json.NewEncoder(w).Encode(submitResponse{Successful: true, Hash: "abc123"})
	}))

	result, err := client.Submit(context.Background(), []byte("signed-tx"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "abc123", result.Hash)
}

func TestSubmit_ResultCodeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want error
	}{
		{"tx_bad_seq", apperrors.ErrStaleSequence},
		{"op_underfunded", apperrors.ErrInsufficientBalance},
		{"tx_malformed", apperrors.ErrMalformedTx},
		{"op_cross_self", apperrors.ErrSubmissionFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.code, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(submitResponse{Successful: false, ResultCode: tc.code})
			}))

			_, err := client.Submit(context.Background(), []byte("signed-tx"))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSubmit_SubmitsExactlyOnceOnRejection(t *testing.T) {
	t.Parallel()

	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(submitResponse{Successful: false, ResultCode: "tx_bad_seq"})
	}))

	_, err := client.Submit(context.Background(), []byte("signed-tx"))
	require.Error(t, err)
	assert.Equal(t, 1, calls, "transaction submission must never auto-retry")
}
