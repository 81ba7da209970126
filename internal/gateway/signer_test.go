package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
)

func newTestSigner(t *testing.T, handler http.Handler) *RemoteSigner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRemoteSigner(config.SignerConfig{
		BaseURL: srv.URL,
		APIKey:  config.Secret("signer-key"),
	}, &MockLogger{})
}

func TestRemoteSigner_Sign(t *testing.T) {
	t.Parallel()

	var got signRequest
	signer := newTestSigner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sign", r.URL.Path)
		assert.Equal(t, "signer-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(signResponse{
			SignedTx: base64.StdEncoding.EncodeToString([]byte("signed-bytes")),
		})
	}))

	unit := &core.SubmissionUnit{
		Account:    "ACC_1",
		Sequence:   42,
		ValidUntil: time.Now().Add(time.Minute),
		Memo:       "abcd1234",
		Operations: []core.Operation{
			{Type: core.OpCancelOffer, OfferID: 7},
			{
				Type:    core.OpCreateOffer,
				Selling: core.Asset{Code: "TOK", Issuer: "I1"},
				Buying:  core.Asset{Code: "USD", Issuer: "I2"},
				Price:   decimal.RequireFromString("10.2"),
				Amount:  decimal.NewFromInt(100),
			},
		},
	}

	tx, err := signer.Sign(context.Background(), unit)
	require.NoError(t, err)
	assert.Equal(t, []byte("signed-bytes"), tx)

	assert.Equal(t, "ACC_1", got.Account)
	assert.Equal(t, int64(42), got.Sequence)
	assert.Equal(t, "abcd1234", got.Memo)
	require.Len(t, got.Operations, 2)
	assert.Equal(t, "cancel_offer", got.Operations[0].Type)
	assert.Equal(t, int64(7), got.Operations[0].OfferID)
	assert.Equal(t, "create_offer", got.Operations[1].Type)
	assert.Equal(t, "10.2", got.Operations[1].Price)
}

func TestRemoteSigner_EmptyResponse(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signResponse{SignedTx: ""})
	}))

	_, err := signer.Sign(context.Background(), &core.SubmissionUnit{Account: "ACC_1", Sequence: 1})
	assert.Error(t, err)
}
